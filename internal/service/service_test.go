package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"posorder/backend/internal/cart"
	"posorder/backend/internal/domain"
	"posorder/backend/internal/events"
	"posorder/backend/internal/notify"
	"posorder/backend/internal/store"
	"posorder/backend/internal/store/memory"
	"posorder/backend/internal/validation"
)

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []notify.InvoicePayload
}

func (n *recordingNotifier) Notify(_ context.Context, payload notify.InvoicePayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, payload)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, env)
	return nil
}

type fixture struct {
	svc       *Service
	repo      *memory.Store
	carts     *cart.MemoryStore
	notifier  *recordingNotifier
	publisher *recordingPublisher
	actor     domain.Actor
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func raw(s string) json.RawMessage {
	return json.RawMessage(s)
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	repo := memory.New()
	repo.PutProduct(domain.Product{ID: 1, Name: "Teh Botol", UnitShortName: "btl", Price: dec("10"), DiscountedPrice: dec("8"), PurchasePrice: dec("6"), Quantity: 50, Active: true})
	repo.PutProduct(domain.Product{ID: 2, Name: "Kopi Susu", UnitShortName: "cup", Price: dec("10"), DiscountedPrice: dec("10"), PurchasePrice: dec("7"), Quantity: 50, Active: true})
	if _, err := repo.CreateCustomer(context.Background(), domain.Customer{Name: "Ani", Email: "ani@example.com"}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	f := fixture{
		repo:      repo,
		carts:     cart.NewMemoryStore(),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		actor:     domain.Actor{ID: 5, Username: "kasir", Name: "Kasir Satu", Role: domain.RoleCashier},
	}
	f.svc = New(repo, f.carts, f.notifier, f.publisher, "https://cdn.example.com")
	f.svc.now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f fixture) fillCart(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.AddToCart(ctx, f.actor, domain.CartAddRequest{ProductID: 1, Quantity: 10}); err != nil {
		t.Fatalf("add product 1: %v", err)
	}
	if _, err := f.svc.AddToCart(ctx, f.actor, domain.CartAddRequest{ProductID: 2, Quantity: 10}); err != nil {
		t.Fatalf("add product 2: %v", err)
	}
}

func TestFinalizeOrderScenario(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	ctx := context.Background()

	resp, err := f.svc.FinalizeOrder(ctx, f.actor, domain.FinalizeOrderRequest{
		CustomerID:    raw(`1`),
		OrderDiscount: raw(`10`),
		Paid:          raw(`"150"`),
	})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	order := resp.Order
	if resp.Message != "Order completed successfully" {
		t.Fatalf("unexpected message %q", resp.Message)
	}

	checks := map[string][2]decimal.Decimal{
		"sub_total":      {order.SubTotal, dec("180")},
		"discount":       {order.Discount, dec("20")},
		"order_discount": {order.OrderDiscount, dec("10")},
		"total":          {order.Total, dec("170")},
		"paid":           {order.Paid, dec("150")},
		"due":            {order.Due, dec("20")},
	}
	for name, pair := range checks {
		if !pair[0].Equal(pair[1]) {
			t.Fatalf("expected %s %s, got %s", name, pair[1], pair[0])
		}
	}
	if order.Status {
		t.Fatalf("expected order to be due")
	}
	if order.TotalItem != 20 || len(order.Lines) != 2 {
		t.Fatalf("unexpected aggregate items=%d lines=%d", order.TotalItem, len(order.Lines))
	}
	if len(order.Transactions) != 1 || !order.Transactions[0].Amount.Equal(dec("150")) || order.Transactions[0].PaidBy != "cash" {
		t.Fatalf("expected one cash transaction of 150, got %+v", order.Transactions)
	}
	if order.Transactions[0].UserID != f.actor.ID {
		t.Fatalf("expected transaction by actor %d, got %d", f.actor.ID, order.Transactions[0].UserID)
	}

	products, _ := f.repo.GetProductsByIDs(ctx, []int64{1, 2})
	if products[1].Quantity != 40 || products[2].Quantity != 40 {
		t.Fatalf("expected stock decremented to 40, got %d and %d", products[1].Quantity, products[2].Quantity)
	}

	cartResp, err := f.svc.Cart(ctx, f.actor)
	if err != nil || len(cartResp.Items) != 0 {
		t.Fatalf("expected cart to be cleared, got %+v (%v)", cartResp.Items, err)
	}

	if len(f.notifier.payloads) != 1 {
		t.Fatalf("expected one invoice notification, got %d", len(f.notifier.payloads))
	}
	payload := f.notifier.payloads[0]
	if payload.OrderID != order.ID || payload.UserName != "Kasir Satu" || payload.Total != "170.00" || payload.SaleDate != "01/05/2026" {
		t.Fatalf("unexpected invoice payload %+v", payload)
	}

	if len(f.publisher.events) != 1 || f.publisher.events[0].EventType != events.EventOrderFinalized {
		t.Fatalf("expected OrderFinalized event, got %+v", f.publisher.events)
	}
}

func TestCollectDueScenario(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	ctx := context.Background()

	resp, err := f.svc.FinalizeOrder(ctx, f.actor, domain.FinalizeOrderRequest{
		CustomerID:    raw(`1`),
		OrderDiscount: raw(`10`),
		Paid:          raw(`150`),
	})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	receipt, err := f.svc.CollectDue(ctx, f.actor, resp.Order.ID, domain.CollectionRequest{Amount: raw(`20`)})
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if receipt.OrderID != resp.Order.ID || !receipt.CollectionAmount.Equal(dec("20")) || receipt.TransactionID == 0 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	invoice, err := f.svc.CollectionInvoice(ctx, receipt.TransactionID)
	if err != nil {
		t.Fatalf("collection invoice: %v", err)
	}
	order := invoice.Order
	if !order.Due.IsZero() || !order.Paid.Equal(dec("170")) || !order.Status {
		t.Fatalf("expected settled order, got due=%s paid=%s status=%v", order.Due, order.Paid, order.Status)
	}
	if len(order.Transactions) != 2 {
		t.Fatalf("expected two transactions, got %d", len(order.Transactions))
	}
	sum := decimal.Zero
	for _, tx := range order.Transactions {
		sum = sum.Add(tx.Amount)
	}
	if !sum.Equal(order.Paid) {
		t.Fatalf("transactions sum %s does not match paid %s", sum, order.Paid)
	}
	if !invoice.CollectionAmount.Equal(dec("20")) || invoice.Transaction.ID != receipt.TransactionID {
		t.Fatalf("unexpected collection invoice %+v", invoice)
	}

	last := f.publisher.events[len(f.publisher.events)-1]
	if last.EventType != events.EventDueCollected || last.CorrelationID == "" {
		t.Fatalf("expected DueCollected event, got %+v", last)
	}
}

func TestFinalizeEmptyCartYieldsNegativeTotal(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.FinalizeOrder(context.Background(), f.actor, domain.FinalizeOrderRequest{
		CustomerID:    raw(`1`),
		OrderDiscount: raw(`5`),
	})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if !resp.Order.SubTotal.IsZero() || !resp.Order.Total.Equal(dec("-5")) {
		t.Fatalf("expected subtotal 0 and total -5, got %s / %s", resp.Order.SubTotal, resp.Order.Total)
	}
	if !resp.Order.Status || len(resp.Order.Transactions) != 0 {
		t.Fatalf("expected paid status without transactions, got status=%v txs=%d", resp.Order.Status, len(resp.Order.Transactions))
	}
}

func TestFinalizeSucceedsWhenWebhookUnreachable(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)

	dispatcher := notify.NewDispatcher(func() string { return "http://127.0.0.1:1/unreachable" }, 100*time.Millisecond, 0, 4)
	f.svc.notifier = dispatcher

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- dispatcher.Run(ctx) }()

	resp, err := f.svc.FinalizeOrder(context.Background(), f.actor, domain.FinalizeOrderRequest{
		CustomerID: raw(`1`),
		Paid:       raw(`190`),
	})
	cancel()
	if runErr := <-done; runErr != nil {
		t.Fatalf("dispatcher run: %v", runErr)
	}
	if err != nil {
		t.Fatalf("expected finalize to succeed despite webhook failure, got %v", err)
	}
	if !resp.Order.Status || !resp.Order.Due.Equal(dec("-10")) {
		t.Fatalf("expected overpaid order with due -10, got due=%s status=%v", resp.Order.Due, resp.Order.Status)
	}
}

func TestFinalizeValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name  string
		req   domain.FinalizeOrderRequest
		field string
		msg   string
	}{
		{"missing customer", domain.FinalizeOrderRequest{}, "customer_id", "Please select a customer."},
		{"unknown customer", domain.FinalizeOrderRequest{CustomerID: raw(`99`)}, "customer_id", "The selected customer does not exist."},
		{"bad discount", domain.FinalizeOrderRequest{CustomerID: raw(`1`), OrderDiscount: raw(`"abc"`)}, "order_discount", "The order discount must be a number."},
		{"bad paid", domain.FinalizeOrderRequest{CustomerID: raw(`1`), Paid: raw(`"x"`)}, "paid", "The amount paid must be a number."},
		{"negative paid", domain.FinalizeOrderRequest{CustomerID: raw(`1`), Paid: raw(`-1`)}, "paid", "The paid field must be at least 0."},
		{"paid too large", domain.FinalizeOrderRequest{CustomerID: raw(`1`), Paid: raw(`1e20`)}, "paid", "The paid field must not be greater than 999999999999.99."},
		{"discount too large", domain.FinalizeOrderRequest{CustomerID: raw(`1`), OrderDiscount: raw(`"1000000000000"`)}, "order_discount", "The order discount field must not be greater than 999999999999.99."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.FinalizeOrder(context.Background(), f.actor, tc.req)
			var verr *validation.Error
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Fields[tc.field] != tc.msg {
				t.Fatalf("expected %s message %q, got %q", tc.field, tc.msg, verr.Fields[tc.field])
			}
		})
	}

	if len(f.notifier.payloads) != 0 {
		t.Fatalf("rejected requests must not notify")
	}
}

func TestCollectDueRejections(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	ctx := context.Background()

	resp, err := f.svc.FinalizeOrder(ctx, f.actor, domain.FinalizeOrderRequest{CustomerID: raw(`1`), Paid: raw(`100`)})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	orderID := resp.Order.ID

	if _, err := f.svc.CollectDue(ctx, f.actor, 999, domain.CollectionRequest{Amount: raw(`1`)}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	for _, amount := range []string{``, `"abc"`, `0`, `0.001`, `0.5`, `80.01`, `1e20`} {
		_, err := f.svc.CollectDue(ctx, f.actor, orderID, domain.CollectionRequest{Amount: raw(amount)})
		var verr *validation.Error
		if !errors.As(err, &verr) || verr.Fields["amount"] == "" {
			t.Fatalf("expected amount validation error for %q, got %v", amount, err)
		}
	}

	_, err = f.svc.CollectDue(ctx, f.actor, orderID, domain.CollectionRequest{Amount: raw(`0.5`)})
	var minErr *validation.Error
	if !errors.As(err, &minErr) || minErr.Fields["amount"] != "The amount field must be at least 1." {
		t.Fatalf("expected minimum amount message, got %v", err)
	}

	if _, err := f.svc.CollectDue(ctx, f.actor, orderID, domain.CollectionRequest{Amount: raw(`80`)}); err != nil {
		t.Fatalf("collect full due: %v", err)
	}
	_, err = f.svc.CollectDue(ctx, f.actor, orderID, domain.CollectionRequest{Amount: raw(`1`)})
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error on settled order, got %v", err)
	}
}

func TestListingLookupsReturnNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Invoice(ctx, 42); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("invoice: expected not found, got %v", err)
	}
	if _, err := f.svc.POSInvoice(ctx, 42); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("pos invoice: expected not found, got %v", err)
	}
	if _, err := f.svc.OrderTransactions(ctx, 42); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("transactions: expected not found, got %v", err)
	}
	if _, err := f.svc.CollectionInvoice(ctx, 42); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("collection invoice: expected not found, got %v", err)
	}
}

func TestPOSInvoiceUsesReceiptWidthSetting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.FinalizeOrder(ctx, f.actor, domain.FinalizeOrderRequest{CustomerID: raw(`1`)})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	inv, err := f.svc.POSInvoice(ctx, resp.Order.ID)
	if err != nil || inv.MaxWidth != "300px" {
		t.Fatalf("expected default width 300px, got %q (%v)", inv.MaxWidth, err)
	}

	if _, err := f.svc.UpdateSettings(ctx, domain.SettingsUpdateRequest{Settings: map[string]string{"receiptMaxwidth": "80mm"}}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	inv, _ = f.svc.POSInvoice(ctx, resp.Order.ID)
	if inv.MaxWidth != "80mm" {
		t.Fatalf("expected configured width, got %q", inv.MaxWidth)
	}
}

func TestOrderGrid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.repo.CreateCustomer(ctx, domain.Customer{Name: "Budi"}); err != nil {
		t.Fatalf("customer: %v", err)
	}

	f.fillCart(t)
	if _, err := f.svc.FinalizeOrder(ctx, f.actor, domain.FinalizeOrderRequest{CustomerID: raw(`1`), Paid: raw(`1000`)}); err != nil {
		t.Fatalf("finalize 1: %v", err)
	}
	f.fillCart(t)
	if _, err := f.svc.FinalizeOrder(ctx, f.actor, domain.FinalizeOrderRequest{CustomerID: raw(`2`), Paid: raw(`100`)}); err != nil {
		t.Fatalf("finalize 2: %v", err)
	}

	grid, err := f.svc.OrderGrid(ctx, domain.GridQuery{Draw: 3, Length: 10})
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	if grid.Draw != 3 || grid.RecordsTotal != 2 || grid.RecordsFiltered != 2 || len(grid.Data) != 2 {
		t.Fatalf("unexpected grid envelope %+v", grid)
	}

	paid := grid.Data[0]
	if paid.Index != 1 || paid.SaleID != "#1" || paid.Customer != "Ani" || paid.Status != "Paid" || paid.Actions.DueCollection != "" {
		t.Fatalf("unexpected paid row %+v", paid)
	}
	if paid.Due != "-820.00" || paid.Paid != "1,000.00" {
		t.Fatalf("unexpected money formatting due=%s paid=%s", paid.Due, paid.Paid)
	}

	due := grid.Data[1]
	if due.Status != "Due" || due.Actions.DueCollection != "/api/v1/orders/2/collection" {
		t.Fatalf("unexpected due row %+v", due)
	}

	grid, err = f.svc.OrderGrid(ctx, domain.GridQuery{Draw: 4, Search: "budi"})
	if err != nil || grid.RecordsFiltered != 1 || grid.Data[0].ID != 2 {
		t.Fatalf("unexpected search result %+v (%v)", grid, err)
	}
}

func TestUpdateCartLineRejectsUnknownProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateCartLine(ctx, f.actor, 999, domain.CartUpdateRequest{Quantity: 1})
	var verr *validation.Error
	if !errors.As(err, &verr) || verr.Fields["product_id"] == "" {
		t.Fatalf("expected product_id validation error, got %v", err)
	}
	lines, _ := f.carts.Lines(ctx, f.actor.ID)
	if len(lines) != 0 {
		t.Fatalf("expected no cart line for an unknown product, got %+v", lines)
	}

	if _, err := f.svc.UpdateCartLine(ctx, f.actor, 999, domain.CartUpdateRequest{Quantity: 0}); err != nil {
		t.Fatalf("clearing a stale line must succeed, got %v", err)
	}
}

func TestFinalizeOrderNamesStaleCartProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)
	if err := f.carts.Add(ctx, f.actor.ID, 999, 1); err != nil {
		t.Fatalf("seed stale line: %v", err)
	}

	_, err := f.svc.FinalizeOrder(ctx, f.actor, domain.FinalizeOrderRequest{CustomerID: raw(`1`)})
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if msg := verr.Fields["cart"]; msg != "Product 999 in the cart no longer exists. Remove it and try again." {
		t.Fatalf("unexpected cart message %q", msg)
	}

	if _, err := f.svc.RemoveCartLine(ctx, f.actor, 999); err != nil {
		t.Fatalf("remove stale line: %v", err)
	}
	if _, err := f.svc.FinalizeOrder(ctx, f.actor, domain.FinalizeOrderRequest{CustomerID: raw(`1`)}); err != nil {
		t.Fatalf("finalize after removing stale line: %v", err)
	}
}

func TestCartOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddToCart(ctx, f.actor, domain.CartAddRequest{ProductID: 77, Quantity: 1}); err == nil {
		t.Fatalf("expected unknown product to be rejected")
	}

	f.fillCart(t)
	resp, err := f.svc.UpdateCartLine(ctx, f.actor, 1, domain.CartUpdateRequest{Quantity: 2})
	if err != nil {
		t.Fatalf("update cart: %v", err)
	}
	if len(resp.Items) != 2 || !resp.SubTotal.Equal(dec("116")) {
		t.Fatalf("unexpected cart %+v", resp)
	}

	resp, err = f.svc.RemoveCartLine(ctx, f.actor, 2)
	if err != nil || len(resp.Items) != 1 {
		t.Fatalf("remove line: %+v (%v)", resp, err)
	}

	if err := f.svc.ClearCart(ctx, f.actor); err != nil {
		t.Fatalf("clear cart: %v", err)
	}
}

func TestUpdateSettingsRejectsUnknownKeys(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateSettings(context.Background(), domain.SettingsUpdateRequest{Settings: map[string]string{"nope": "1"}})
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
