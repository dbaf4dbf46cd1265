package store

import (
	"context"
	"errors"
	"fmt"

	"posorder/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrExceedsDue         = errors.New("amount exceeds outstanding due")
	ErrAlreadyPaid        = errors.New("order is already fully paid")
)

// ProductUnavailableError reports a cart line whose product no longer
// exists. It matches ErrNotFound.
type ProductUnavailableError struct {
	ProductID int64
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %d unavailable: %v", e.ProductID, ErrNotFound)
}

func (e *ProductUnavailableError) Unwrap() error { return ErrNotFound }

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)

	// CreateOrder writes the order header, its lines, the stock decrements and
	// the opening payment as one unit of work.
	CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error)
	// GetOrder loads an order with its customer, lines (with products) and transactions.
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.OrderSummary, int, int, error)
	// CollectDue applies a payment to an order's balance and appends its
	// transaction under a lock on the order.
	CollectDue(ctx context.Context, orderID int64, payment domain.Payment) (*domain.Order, *domain.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error)
	ListTransactionsByOrder(ctx context.Context, orderID int64) ([]domain.Transaction, error)

	ListSettings(ctx context.Context) (map[string]string, error)
	UpsertSettings(ctx context.Context, values map[string]string) error

	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
