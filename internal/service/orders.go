package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"posorder/backend/internal/domain"
	"posorder/backend/internal/events"
	"posorder/backend/internal/notify"
	"posorder/backend/internal/pricing"
	"posorder/backend/internal/settings"
	"posorder/backend/internal/store"
	"posorder/backend/internal/validation"
)

const orderCompletedMessage = "Order completed successfully"

// FinalizeOrder turns the actor's cart into an order. The invoice webhook,
// cart cleanup and event publishing run after the order is committed and
// cannot fail the call.
func (s *Service) FinalizeOrder(ctx context.Context, actor domain.Actor, req domain.FinalizeOrderRequest) (domain.FinalizeOrderResponse, error) {
	customerID, orderDiscount, paid, err := s.validateFinalize(ctx, req)
	if err != nil {
		return domain.FinalizeOrderResponse{}, err
	}

	lines, err := s.carts.Lines(ctx, actor.ID)
	if err != nil {
		return domain.FinalizeOrderResponse{}, fmt.Errorf("load cart: %w", err)
	}

	order, err := s.repo.CreateOrder(ctx, domain.OrderDraft{
		CustomerID:    customerID,
		UserID:        actor.ID,
		OrderDiscount: orderDiscount,
		Paid:          paid,
		Lines:         lines,
		CreatedAt:     s.now(),
	})
	if err != nil {
		var unavailable *store.ProductUnavailableError
		switch {
		case errors.As(err, &unavailable):
			return domain.FinalizeOrderResponse{}, validation.Single("cart",
				fmt.Sprintf("Product %d in the cart no longer exists. Remove it and try again.", unavailable.ProductID))
		case errors.Is(err, store.ErrNotFound):
			return domain.FinalizeOrderResponse{}, validation.Single("customer_id", "The selected customer does not exist.")
		}
		return domain.FinalizeOrderResponse{}, fmt.Errorf("create order: %w", err)
	}

	s.sendInvoice(ctx, order, actor)

	if err := s.carts.Clear(ctx, actor.ID); err != nil {
		log.Printf("[service] WARN: failed to clear cart for user %d after order %d: %v", actor.ID, order.ID, err)
	}

	s.publish(ctx, events.EventOrderFinalized, order.ID, events.OrderFinalizedPayload{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		UserID:        order.UserID,
		TotalItem:     order.TotalItem,
		SubTotal:      order.SubTotal,
		OrderDiscount: order.OrderDiscount,
		Total:         order.Total,
		Paid:          order.Paid,
		Due:           order.Due,
		Status:        order.Status,
	})

	return domain.FinalizeOrderResponse{Message: orderCompletedMessage, Order: order}, nil
}

func (s *Service) validateFinalize(ctx context.Context, req domain.FinalizeOrderRequest) (int64, decimal.Decimal, decimal.Decimal, error) {
	v := validation.Violations{}

	var customerID int64
	switch {
	case validation.IsBlank(req.CustomerID):
		v.Add("customer_id", "Please select a customer.")
	default:
		id, ok := validation.Integer(req.CustomerID)
		if !ok {
			v.Add("customer_id", "The customer id field must be an integer.")
			break
		}
		if _, err := s.repo.GetCustomer(ctx, id); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return 0, decimal.Zero, decimal.Zero, fmt.Errorf("load customer: %w", err)
			}
			v.Add("customer_id", "The selected customer does not exist.")
			break
		}
		customerID = id
	}

	orderDiscount := optionalAmount(v, "order_discount", req.OrderDiscount,
		"The order discount must be a number.", "The order discount field must be at least 0.",
		"The order discount field must not be greater than 999999999999.99.")
	paid := optionalAmount(v, "paid", req.Paid,
		"The amount paid must be a number.", "The paid field must be at least 0.",
		"The paid field must not be greater than 999999999999.99.")

	if err := v.Err(); err != nil {
		return 0, decimal.Zero, decimal.Zero, err
	}
	return customerID, orderDiscount, paid, nil
}

// optionalAmount parses a nullable money field bounded by [0, pricing.MaxAmount];
// blank means zero.
func optionalAmount(v validation.Violations, field string, raw []byte, numericMsg, minMsg, maxMsg string) decimal.Decimal {
	if validation.IsBlank(raw) {
		return decimal.Zero
	}
	d, ok := validation.Decimal(raw)
	if !ok {
		v.Add(field, numericMsg)
		return decimal.Zero
	}
	if d.IsNegative() {
		v.Add(field, minMsg)
		return decimal.Zero
	}
	d = pricing.Round(d)
	if d.GreaterThan(pricing.MaxAmount) {
		v.Add(field, maxMsg)
		return decimal.Zero
	}
	return d
}

func (s *Service) sendInvoice(ctx context.Context, order *domain.Order, actor domain.Actor) {
	if s.notifier == nil {
		return
	}
	lookup, err := s.lookup(ctx)
	if err != nil {
		log.Printf("[service] WARN: invoice for order %d uses default settings: %v", order.ID, err)
		lookup = settings.New(nil)
	}
	s.notifier.Notify(ctx, notify.BuildInvoicePayload(order, actor.Name, lookup, s.assetBaseURL, s.now()))
}

func (s *Service) Invoice(ctx context.Context, orderID int64) (domain.InvoiceResponse, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.InvoiceResponse{}, notFound("order", orderID, err)
	}
	return domain.InvoiceResponse{Order: order}, nil
}

func (s *Service) POSInvoice(ctx context.Context, orderID int64) (domain.POSInvoiceResponse, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.POSInvoiceResponse{}, notFound("order", orderID, err)
	}
	lookup, err := s.lookup(ctx)
	if err != nil {
		return domain.POSInvoiceResponse{}, err
	}
	return domain.POSInvoiceResponse{
		Order:    order,
		MaxWidth: lookup.String(settings.ReceiptMaxWidth, "300px"),
	}, nil
}

func (s *Service) OrderTransactions(ctx context.Context, orderID int64) (domain.OrderTransactionsResponse, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.OrderTransactionsResponse{}, notFound("order", orderID, err)
	}
	return domain.OrderTransactionsResponse{Order: order}, nil
}

// OrderGrid answers a DataTables server-side request over the order list.
func (s *Service) OrderGrid(ctx context.Context, q domain.GridQuery) (domain.OrderGrid, error) {
	start := max(q.Start, 0)
	limit := q.Length
	if limit < 0 {
		limit = 0
	}

	rows, total, filtered, err := s.repo.ListOrders(ctx, domain.OrderFilter{
		Search: q.Search,
		Offset: start,
		Limit:  limit,
	})
	if err != nil {
		return domain.OrderGrid{}, fmt.Errorf("list orders: %w", err)
	}

	grid := domain.OrderGrid{
		Draw:            q.Draw,
		RecordsTotal:    total,
		RecordsFiltered: filtered,
		Data:            make([]domain.GridRow, 0, len(rows)),
	}
	for i, o := range rows {
		grid.Data = append(grid.Data, gridRow(start+i+1, o))
	}
	return grid, nil
}

func gridRow(index int, o domain.OrderSummary) domain.GridRow {
	customer := o.CustomerName
	if customer == "" {
		customer = "-"
	}
	status := "Due"
	if o.Status {
		status = "Paid"
	}

	base := fmt.Sprintf("/api/v1/orders/%d", o.ID)
	actions := domain.GridActions{
		Invoice:      base + "/invoice",
		POSInvoice:   base + "/pos-invoice",
		Transactions: base + "/transactions",
	}
	if !o.Status {
		actions.DueCollection = base + "/collection"
	}

	return domain.GridRow{
		Index:         index,
		ID:            o.ID,
		SaleID:        fmt.Sprintf("#%d", o.ID),
		Customer:      customer,
		Item:          o.TotalItem,
		SubTotal:      pricing.Grouped(o.SubTotal),
		Discount:      pricing.Grouped(o.Discount),
		OrderDiscount: pricing.Grouped(o.OrderDiscount),
		Total:         pricing.Grouped(o.Total),
		Paid:          pricing.Grouped(o.Paid),
		Due:           pricing.Grouped(o.Due),
		Status:        status,
		Actions:       actions,
	}
}
