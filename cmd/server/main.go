package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"posorder/backend/internal/cart"
	"posorder/backend/internal/config"
	"posorder/backend/internal/events"
	"posorder/backend/internal/httpapi"
	"posorder/backend/internal/notify"
	"posorder/backend/internal/service"
	"posorder/backend/internal/store"
	"posorder/backend/internal/store/memory"
	pgstore "posorder/backend/internal/store/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("failed to read .env: %v", err)
	}

	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Println("server stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	closers := make([]func() error, 0, 2)
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				log.Printf("close error: %v", err)
			}
		}
	}()

	startupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	repo, closeRepo, err := openRepository(startupCtx, cfg)
	if err != nil {
		return err
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	carts, closeCarts := openCartStore(startupCtx, cfg)
	if closeCarts != nil {
		closers = append(closers, closeCarts)
	}

	var publisher events.Publisher = events.Noop{}
	var kafkaPublisher *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, 0)
		publisher = kafkaPublisher
		log.Printf("events: kafka topic %s", cfg.KafkaTopic)
	} else {
		log.Println("events: disabled")
	}

	dispatcher := notify.NewDispatcher(
		config.WebhookURL,
		time.Duration(cfg.WebhookTimeoutSeconds)*time.Second,
		cfg.WebhookMaxRetries,
		cfg.NotifyQueueSize,
	)

	svc := service.New(repo, carts, dispatcher, publisher, cfg.AssetBaseURL)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	if cfg.DatabaseURL != "" {
		if err := auth.EnsureAdmin(startupCtx, "admin", cfg.SeedAdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Workers outlive the HTTP server so invoices and events queued by the
	// last in-flight requests are still flushed.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("POS backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		defer stopWorkers()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		return dispatcher.Run(workerCtx)
	})
	if kafkaPublisher != nil {
		g.Go(func() error {
			return kafkaPublisher.Run(workerCtx)
		})
	}

	return g.Wait()
}

// openRepository never falls back to memory when DATABASE_URL is set.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, func() error, error) {
	if cfg.DatabaseURL == "" {
		log.Println("repository: in-memory")
		return memory.NewSeeded(), nil, nil
	}

	if cfg.AutoMigrate {
		if err := pgstore.Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
	}
	log.Println("repository: postgres")
	return pg, pg.Close, nil
}

func openCartStore(ctx context.Context, cfg config.Config) (cart.Store, func() error) {
	if cfg.RedisAddr == "" {
		log.Println("cart: in-memory")
		return cart.NewMemoryStore(), nil
	}

	redisCarts := cart.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, time.Duration(cfg.CartTTLHours)*time.Hour)
	if err := redisCarts.Ping(ctx); err != nil {
		log.Printf("redis unavailable (%v), using in-memory carts", err)
		_ = redisCarts.Close()
		return cart.NewMemoryStore(), nil
	}
	log.Println("cart: redis")
	return redisCarts, redisCarts.Close
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.DatabaseURL != "" && cfg.SeedAdminPassword != "" && len(cfg.SeedAdminPassword) < 8 {
		return fmt.Errorf("SEED_ADMIN_PASSWORD must be at least 8 characters")
	}
	return nil
}
