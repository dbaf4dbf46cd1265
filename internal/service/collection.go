package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"posorder/backend/internal/domain"
	"posorder/backend/internal/events"
	"posorder/backend/internal/pricing"
	"posorder/backend/internal/store"
	"posorder/backend/internal/validation"
)

var minCollection = decimal.NewFromInt(1)

func (s *Service) CollectionForm(ctx context.Context, orderID int64) (domain.CollectionForm, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.CollectionForm{}, notFound("order", orderID, err)
	}
	return domain.CollectionForm{Order: order}, nil
}

// CollectDue records a later cash payment against an order's outstanding
// balance. The amount must be at least 1 and at most the current due.
func (s *Service) CollectDue(ctx context.Context, actor domain.Actor, orderID int64, req domain.CollectionRequest) (domain.CollectionReceipt, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.CollectionReceipt{}, notFound("order", orderID, err)
	}

	amount, err := validateCollection(order, req)
	if err != nil {
		return domain.CollectionReceipt{}, err
	}

	updated, tx, err := s.repo.CollectDue(ctx, orderID, domain.Payment{
		UserID: actor.ID,
		Amount: amount,
		PaidBy: domain.PaidByCash,
		At:     s.now(),
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.CollectionReceipt{}, notFound("order", orderID, err)
	case errors.Is(err, store.ErrAlreadyPaid):
		return domain.CollectionReceipt{}, validation.Single("amount", "This order has no outstanding due.")
	case errors.Is(err, store.ErrExceedsDue):
		return domain.CollectionReceipt{}, validation.Single("amount", "The amount must not be greater than the outstanding due.")
	case err != nil:
		return domain.CollectionReceipt{}, fmt.Errorf("collect due: %w", err)
	}

	s.publish(ctx, events.EventDueCollected, orderID, events.DueCollectedPayload{
		OrderID:       orderID,
		TransactionID: tx.ID,
		UserID:        actor.ID,
		Amount:        tx.Amount,
		Paid:          updated.Paid,
		Due:           updated.Due,
		Status:        updated.Status,
	})

	return domain.CollectionReceipt{
		TransactionID:    tx.ID,
		OrderID:          orderID,
		CollectionAmount: tx.Amount,
	}, nil
}

func validateCollection(order *domain.Order, req domain.CollectionRequest) (decimal.Decimal, error) {
	if validation.IsBlank(req.Amount) {
		return decimal.Zero, validation.Single("amount", "The amount field is required.")
	}
	amount, ok := validation.Decimal(req.Amount)
	if !ok {
		return decimal.Zero, validation.Single("amount", "The amount field must be a number.")
	}
	amount = pricing.Round(amount)
	if amount.LessThan(minCollection) {
		return decimal.Zero, validation.Single("amount", "The amount field must be at least 1.")
	}
	if amount.GreaterThan(pricing.MaxAmount) {
		return decimal.Zero, validation.Single("amount", "The amount field must not be greater than 999999999999.99.")
	}
	if !order.Due.IsPositive() {
		return decimal.Zero, validation.Single("amount", "This order has no outstanding due.")
	}
	if amount.GreaterThan(order.Due) {
		return decimal.Zero, validation.Single("amount",
			fmt.Sprintf("The amount must not be greater than the outstanding due (%s).", pricing.Fixed(order.Due)))
	}
	return amount, nil
}

func (s *Service) CollectionInvoice(ctx context.Context, transactionID int64) (domain.CollectionInvoice, error) {
	tx, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return domain.CollectionInvoice{}, notFound("transaction", transactionID, err)
	}
	order, err := s.repo.GetOrder(ctx, tx.OrderID)
	if err != nil {
		return domain.CollectionInvoice{}, notFound("order", tx.OrderID, err)
	}
	return domain.CollectionInvoice{
		Order:            order,
		Transaction:      *tx,
		CollectionAmount: tx.Amount,
	}, nil
}
