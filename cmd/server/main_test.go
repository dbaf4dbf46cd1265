package main

import (
	"context"
	"testing"

	"posorder/backend/internal/cart"
	"posorder/backend/internal/config"
	"posorder/backend/internal/store/memory"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	if err := validateSecurityConfig(config.Config{AuthSecret: "short"}); err == nil {
		t.Fatalf("expected short auth secret to be rejected")
	}

	err := validateSecurityConfig(config.Config{
		AuthSecret:        "0123456789abcdef0123456789abcdef",
		DatabaseURL:       "postgres://localhost/pos",
		SeedAdminPassword: "abc",
	})
	if err == nil {
		t.Fatalf("expected short admin password to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestOpenRepositoryDefaultsToSeededMemory(t *testing.T) {
	repo, closeFn, err := openRepository(context.Background(), config.Config{})
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	if closeFn != nil {
		t.Fatalf("expected no closer for the in-memory repository")
	}
	if _, ok := repo.(*memory.Store); !ok {
		t.Fatalf("expected *memory.Store, got %T", repo)
	}
	products, err := repo.ListProducts(context.Background())
	if err != nil || len(products) == 0 {
		t.Fatalf("expected seeded products, got %d (%v)", len(products), err)
	}
}

func TestOpenCartStoreDefaultsToMemory(t *testing.T) {
	carts, closeFn := openCartStore(context.Background(), config.Config{})
	if closeFn != nil {
		t.Fatalf("expected no closer for the in-memory cart store")
	}
	if _, ok := carts.(*cart.MemoryStore); !ok {
		t.Fatalf("expected *cart.MemoryStore, got %T", carts)
	}
}
