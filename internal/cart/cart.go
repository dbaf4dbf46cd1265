package cart

import (
	"context"
	"errors"
	"slices"
	"sync"

	"posorder/backend/internal/domain"
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Store keeps the pending sale lines of each user until the order is finalized.
type Store interface {
	Lines(ctx context.Context, userID int64) ([]domain.CartLine, error)
	Add(ctx context.Context, userID int64, productID int64, qty int) error
	// Set replaces the quantity of a line; a quantity below 1 removes it.
	Set(ctx context.Context, userID int64, productID int64, qty int) error
	Remove(ctx context.Context, userID int64, productID int64) error
	Clear(ctx context.Context, userID int64) error
}

type MemoryStore struct {
	mu    sync.Mutex
	carts map[int64]map[int64]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[int64]map[int64]int)}
}

func (m *MemoryStore) Lines(_ context.Context, userID int64) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return toLines(userID, m.carts[userID]), nil
}

func (m *MemoryStore) Add(_ context.Context, userID int64, productID int64, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lines, ok := m.carts[userID]
	if !ok {
		lines = make(map[int64]int)
		m.carts[userID] = lines
	}
	lines[productID] += qty
	return nil
}

func (m *MemoryStore) Set(_ context.Context, userID int64, productID int64, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if qty < 1 {
		delete(m.carts[userID], productID)
		return nil
	}
	lines, ok := m.carts[userID]
	if !ok {
		lines = make(map[int64]int)
		m.carts[userID] = lines
	}
	lines[productID] = qty
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, userID int64, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts[userID], productID)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

func toLines(userID int64, quantities map[int64]int) []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(quantities))
	for productID, qty := range quantities {
		if qty < 1 {
			continue
		}
		lines = append(lines, domain.CartLine{UserID: userID, ProductID: productID, Quantity: qty})
	}
	slices.SortFunc(lines, func(a, b domain.CartLine) int {
		switch {
		case a.ProductID < b.ProductID:
			return -1
		case a.ProductID > b.ProductID:
			return 1
		}
		return 0
	})
	return lines
}
