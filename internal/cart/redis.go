package cart

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"posorder/backend/internal/domain"
)

// RedisStore keeps each cart in a hash keyed by product id, refreshed to ttl
// on every write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr string, password string, db int, ttl time.Duration) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func cartKey(userID int64) string {
	return fmt.Sprintf("pos:cart:%d", userID)
}

func (r *RedisStore) Lines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	raw, err := r.client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	quantities := make(map[int64]int, len(raw))
	for field, val := range raw {
		productID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(val)
		if err != nil {
			continue
		}
		quantities[productID] = qty
	}
	return toLines(userID, quantities), nil
}

func (r *RedisStore) Add(ctx context.Context, userID int64, productID int64, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}

	key := cartKey(userID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, strconv.FormatInt(productID, 10), int64(qty))
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	return err
}

func (r *RedisStore) Set(ctx context.Context, userID int64, productID int64, qty int) error {
	if qty < 1 {
		return r.Remove(ctx, userID, productID)
	}

	key := cartKey(userID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, strconv.FormatInt(productID, 10), qty)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	return err
}

func (r *RedisStore) Remove(ctx context.Context, userID int64, productID int64) error {
	return r.client.HDel(ctx, cartKey(userID), strconv.FormatInt(productID, 10)).Err()
}

func (r *RedisStore) Clear(ctx context.Context, userID int64) error {
	return r.client.Del(ctx, cartKey(userID)).Err()
}
