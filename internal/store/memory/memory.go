package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"posorder/backend/internal/domain"
	"posorder/backend/internal/pricing"
	"posorder/backend/internal/store"
)

type Store struct {
	mu           sync.RWMutex
	products     map[int64]domain.Product
	customers    map[int64]domain.Customer
	orders       map[int64]*domain.Order
	transactions map[int64]domain.Transaction
	settings     map[string]string
	users        map[string]domain.UserAccount

	nextCustomerID    int64
	nextOrderID       int64
	nextLineID        int64
	nextTransactionID int64
	nextUserID        int64
}

func New() *Store {
	return &Store{
		products:     make(map[int64]domain.Product),
		customers:    make(map[int64]domain.Customer),
		orders:       make(map[int64]*domain.Order),
		transactions: make(map[int64]domain.Transaction),
		settings:     make(map[string]string),
		users:        make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD;
// when unset, dev defaults are used with a warning.
func seedUsers() []domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := make([]domain.UserAccount, 0, 2)
	for _, u := range []struct {
		username string
		name     string
		password string
		role     string
	}{
		{"admin", "Store Admin", adminPwd, domain.RoleAdmin},
		{"cashier", "Front Cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users = append(users, domain.UserAccount{
			Username:  u.username,
			Name:      u.name,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		})
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()

	products := []domain.Product{
		{Name: "Mie Goreng Instan", UnitShortName: "pcs", Price: dec("3.50"), DiscountedPrice: dec("3.50"), PurchasePrice: dec("2.80")},
		{Name: "Telur 10 Butir", UnitShortName: "pack", Price: dec("26.50"), DiscountedPrice: dec("24.00"), PurchasePrice: dec("21.00")},
		{Name: "Susu UHT 1L", UnitShortName: "btl", Price: dec("18.90"), DiscountedPrice: dec("18.90"), PurchasePrice: dec("14.10")},
		{Name: "Roti Tawar", UnitShortName: "pcs", Price: dec("17.80"), DiscountedPrice: dec("15.00"), PurchasePrice: dec("12.00")},
		{Name: "Kopi Sachet", UnitShortName: "sct", Price: dec("2.60"), DiscountedPrice: dec("2.60"), PurchasePrice: dec("1.70")},
		{Name: "Gula 1kg", UnitShortName: "kg", Price: dec("17.40"), DiscountedPrice: dec("17.40"), PurchasePrice: dec("15.30")},
	}
	for i, p := range products {
		p.ID = int64(i + 1)
		p.Quantity = 120
		p.Active = true
		s.products[p.ID] = p
	}

	for _, c := range []domain.Customer{
		{Name: "Walk-in Customer"},
		{Name: "Budi Santoso", Address: "Jl. Merdeka 10", Phone: "081234567890", Email: "budi@example.com"},
	} {
		s.nextCustomerID++
		c.ID = s.nextCustomerID
		s.customers[c.ID] = c
	}

	for _, u := range seedUsers() {
		s.nextUserID++
		u.ID = s.nextUserID
		s.users[u.Username] = u
	}

	s.settings["site_name"] = "Kasir POS"
	return s
}

// PutProduct inserts or replaces a product; used for seeding and tests.
func (s *Store) PutProduct(product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []int64) (map[int64]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[int64]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCustomerID++
	customer.ID = s.nextCustomerID
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) CreateOrder(_ context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[draft.CustomerID]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", draft.CustomerID, store.ErrNotFound)
	}

	inputs := make([]pricing.Line, 0, len(draft.Lines))
	products := make([]domain.Product, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidTransaction
		}
		product, exists := s.products[line.ProductID]
		if !exists {
			return nil, &store.ProductUnavailableError{ProductID: line.ProductID}
		}
		products = append(products, product)
		inputs = append(inputs, pricing.Line{
			Price:           product.Price,
			DiscountedPrice: product.DiscountedPrice,
			Quantity:        line.Quantity,
		})
	}

	totals := pricing.Calculate(inputs, draft.OrderDiscount)
	due, status := pricing.Settle(totals.Total, draft.Paid)

	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	s.nextOrderID++
	order := &domain.Order{
		ID:            s.nextOrderID,
		CustomerID:    customer.ID,
		UserID:        draft.UserID,
		SubTotal:      totals.SubTotal,
		Discount:      totals.Discount,
		OrderDiscount: draft.OrderDiscount,
		Total:         totals.Total,
		Paid:          draft.Paid,
		Due:           due,
		Status:        status,
		TotalItem:     totals.TotalItem,
		CreatedAt:     createdAt,
		Lines:         make([]domain.OrderLine, 0, len(draft.Lines)),
	}

	for i, line := range draft.Lines {
		product := products[i]
		figures := totals.Lines[i]
		s.nextLineID++
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:              s.nextLineID,
			OrderID:         order.ID,
			ProductID:       product.ID,
			Quantity:        line.Quantity,
			Price:           product.Price,
			DiscountedPrice: product.DiscountedPrice,
			PurchasePrice:   product.PurchasePrice,
			SubTotal:        figures.SubTotal,
			Discount:        figures.Discount,
			Total:           figures.Total,
		})
		product.Quantity -= line.Quantity
		s.products[product.ID] = product
		products[i] = product
	}

	if draft.Paid.IsPositive() {
		s.appendTransactionLocked(order, domain.Payment{
			UserID: draft.UserID,
			Amount: draft.Paid,
			PaidBy: domain.PaidByCash,
			At:     createdAt,
		})
	}

	s.orders[order.ID] = order
	return s.loadOrderLocked(order.ID)
}

func (s *Store) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadOrderLocked(id)
}

func (s *Store) ListOrders(_ context.Context, filter domain.OrderFilter) ([]domain.OrderSummary, int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.orders))
	for id := range s.orders {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	search := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(filter.Search), "#"))
	matched := make([]domain.OrderSummary, 0, len(ids))
	for _, id := range ids {
		order := s.orders[id]
		customerName := s.customers[order.CustomerID].Name
		if search != "" &&
			!strings.Contains(strconv.FormatInt(order.ID, 10), search) &&
			!strings.Contains(strings.ToLower(customerName), search) {
			continue
		}
		matched = append(matched, domain.OrderSummary{
			ID:            order.ID,
			CustomerName:  customerName,
			TotalItem:     order.TotalItem,
			SubTotal:      order.SubTotal,
			Discount:      order.Discount,
			OrderDiscount: order.OrderDiscount,
			Total:         order.Total,
			Paid:          order.Paid,
			Due:           order.Due,
			Status:        order.Status,
			CreatedAt:     order.CreatedAt,
		})
	}

	filtered := len(matched)
	start := min(max(filter.Offset, 0), filtered)
	end := filtered
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return matched[start:end], len(s.orders), filtered, nil
}

func (s *Store) CollectDue(_ context.Context, orderID int64, payment domain.Payment) (*domain.Order, *domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	if !payment.Amount.IsPositive() {
		return nil, nil, store.ErrInvalidTransaction
	}
	if !order.Due.IsPositive() {
		return nil, nil, store.ErrAlreadyPaid
	}
	if payment.Amount.GreaterThan(order.Due) {
		return nil, nil, store.ErrExceedsDue
	}

	order.Due, order.Paid, order.Status = pricing.Collect(order.Due, order.Paid, payment.Amount)
	if payment.PaidBy == "" {
		payment.PaidBy = domain.PaidByCash
	}
	if payment.At.IsZero() {
		payment.At = time.Now().UTC()
	}
	tx := s.appendTransactionLocked(order, payment)

	loaded, err := s.loadOrderLocked(orderID)
	if err != nil {
		return nil, nil, err
	}
	return loaded, &tx, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &tx, nil
}

func (s *Store) ListTransactionsByOrder(_ context.Context, orderID int64) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(order.Transactions), nil
}

func (s *Store) ListSettings(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

func (s *Store) UpsertSettings(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range values {
		s.settings[k] = v
	}
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" {
		return nil, store.ErrInvalidTransaction
	}
	if _, exists := s.users[user.Username]; exists {
		return nil, store.ErrInvalidTransaction
	}
	s.nextUserID++
	user.ID = s.nextUserID
	s.users[user.Username] = user
	created := user
	return &created, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}

func (s *Store) appendTransactionLocked(order *domain.Order, payment domain.Payment) domain.Transaction {
	s.nextTransactionID++
	tx := domain.Transaction{
		ID:         s.nextTransactionID,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		UserID:     payment.UserID,
		Amount:     payment.Amount,
		PaidBy:     payment.PaidBy,
		CreatedAt:  payment.At,
	}
	s.transactions[tx.ID] = tx
	order.Transactions = append(order.Transactions, tx)
	return tx
}

// loadOrderLocked returns a deep copy of the order with its relations attached.
func (s *Store) loadOrderLocked(id int64) (*domain.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	out := *order
	if c, ok := s.customers[order.CustomerID]; ok {
		out.Customer = &c
	}
	out.Lines = make([]domain.OrderLine, len(order.Lines))
	for i, line := range order.Lines {
		if p, ok := s.products[line.ProductID]; ok {
			line.Product = &p
		}
		out.Lines[i] = line
	}
	out.Transactions = slices.Clone(order.Transactions)
	if out.Transactions == nil {
		out.Transactions = []domain.Transaction{}
	}
	return &out, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
