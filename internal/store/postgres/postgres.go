package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"posorder/backend/internal/domain"
	"posorder/backend/internal/pricing"
	"posorder/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `
	p.id, p.name, COALESCE(u.short_name, ''), p.price, p.discounted_price,
	p.purchase_price, p.quantity, p.active`

func scanProduct(row interface{ Scan(...any) error }, p *domain.Product) error {
	return row.Scan(&p.ID, &p.Name, &p.UnitShortName, &p.Price, &p.DiscountedPrice, &p.PurchasePrice, &p.Quantity, &p.Active)
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+productColumns+`
		FROM products p
		LEFT JOIN units u ON u.id = p.unit_id
		WHERE p.active = true
		ORDER BY p.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	result := make(map[int64]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT`+productColumns+`
		FROM products p
		LEFT JOIN units u ON u.id = p.unit_id
		WHERE p.id = ANY($1)
	`, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, phone, email
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.Email); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, phone, email
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidTransaction
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, address, phone, email, created_at)
		VALUES ($1,$2,$3,$4,now())
		RETURNING id
	`, customer.Name, customer.Address, customer.Phone, customer.Email).Scan(&customer.ID)
	if err != nil {
		return nil, err
	}
	created := customer
	return &created, nil
}

// CreateOrder locks the customer and product rows, writes the header, lines
// and opening transaction, and decrements stock in a single transaction.
func (s *Store) CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var customerID int64
	err = pgTx.QueryRowContext(ctx, `SELECT id FROM customers WHERE id = $1 FOR SHARE`, draft.CustomerID).Scan(&customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", draft.CustomerID, store.ErrNotFound)
		}
		return nil, err
	}

	ids := make([]int64, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidTransaction
		}
		ids = append(ids, line.ProductID)
	}

	productMap := make(map[int64]domain.Product, len(ids))
	if len(ids) > 0 {
		productRows, err := pgTx.QueryContext(ctx, `
			SELECT id, price, discounted_price, purchase_price
			FROM products
			WHERE id = ANY($1)
			ORDER BY id
			FOR UPDATE
		`, uniqueIDs(ids))
		if err != nil {
			return nil, err
		}
		for productRows.Next() {
			var p domain.Product
			if err := productRows.Scan(&p.ID, &p.Price, &p.DiscountedPrice, &p.PurchasePrice); err != nil {
				_ = productRows.Close()
				return nil, err
			}
			productMap[p.ID] = p
		}
		if err := productRows.Err(); err != nil {
			_ = productRows.Close()
			return nil, err
		}
		_ = productRows.Close()
	}

	inputs := make([]pricing.Line, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		product, exists := productMap[line.ProductID]
		if !exists {
			return nil, &store.ProductUnavailableError{ProductID: line.ProductID}
		}
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

	var orderID int64
	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO orders (
			customer_id, user_id, sub_total, discount, order_discount, total,
			paid, due, status, total_item, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		RETURNING id
	`, customerID, draft.UserID, totals.SubTotal, totals.Discount, draft.OrderDiscount, totals.Total,
		draft.Paid, due, status, totals.TotalItem, createdAt).Scan(&orderID)
	if err != nil {
		return nil, err
	}

	for i, line := range draft.Lines {
		product := productMap[line.ProductID]
		figures := totals.Lines[i]
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO order_products (
				order_id, product_id, quantity, price, discounted_price, purchase_price,
				sub_total, discount, total
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, orderID, product.ID, line.Quantity, product.Price, product.DiscountedPrice, product.PurchasePrice,
			figures.SubTotal, figures.Discount, figures.Total)
		if err != nil {
			return nil, err
		}

		_, err = pgTx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - $1, updated_at = now()
			WHERE id = $2
		`, line.Quantity, product.ID)
		if err != nil {
			return nil, err
		}
	}

	if draft.Paid.IsPositive() {
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO order_transactions (order_id, customer_id, user_id, amount, paid_by, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, orderID, customerID, draft.UserID, draft.Paid, domain.PaidByCash, createdAt)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var order domain.Order
	var customer domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT o.id, o.customer_id, o.user_id, o.sub_total, o.discount, o.order_discount,
			o.total, o.paid, o.due, o.status, o.total_item, o.created_at,
			c.id, c.name, c.address, c.phone, c.email
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE o.id = $1
	`, id).Scan(
		&order.ID, &order.CustomerID, &order.UserID, &order.SubTotal, &order.Discount, &order.OrderDiscount,
		&order.Total, &order.Paid, &order.Due, &order.Status, &order.TotalItem, &order.CreatedAt,
		&customer.ID, &customer.Name, &customer.Address, &customer.Phone, &customer.Email,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.Customer = &customer

	lineRows, err := s.db.QueryContext(ctx, `
		SELECT op.id, op.order_id, op.product_id, op.quantity, op.price, op.discounted_price,
			op.purchase_price, op.sub_total, op.discount, op.total,`+productColumns+`
		FROM order_products op
		JOIN products p ON p.id = op.product_id
		LEFT JOIN units u ON u.id = p.unit_id
		WHERE op.order_id = $1
		ORDER BY op.id
	`, id)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()

	order.Lines = make([]domain.OrderLine, 0, 8)
	for lineRows.Next() {
		var line domain.OrderLine
		var p domain.Product
		if err := lineRows.Scan(
			&line.ID, &line.OrderID, &line.ProductID, &line.Quantity, &line.Price, &line.DiscountedPrice,
			&line.PurchasePrice, &line.SubTotal, &line.Discount, &line.Total,
			&p.ID, &p.Name, &p.UnitShortName, &p.Price, &p.DiscountedPrice, &p.PurchasePrice, &p.Quantity, &p.Active,
		); err != nil {
			return nil, err
		}
		line.Product = &p
		order.Lines = append(order.Lines, line)
	}
	if err := lineRows.Err(); err != nil {
		return nil, err
	}

	order.Transactions, err = s.ListTransactionsByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.OrderSummary, int, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, 0, err
	}

	search := strings.TrimPrefix(strings.TrimSpace(filter.Search), "#")
	const where = `
		WHERE $1::text = ''
			OR strpos(o.id::text, $1::text) > 0
			OR strpos(lower(c.name), lower($1::text)) > 0`

	var filtered int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM orders o
		JOIN customers c ON c.id = o.customer_id`+where, search).Scan(&filtered); err != nil {
		return nil, 0, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, c.name, o.total_item, o.sub_total, o.discount, o.order_discount,
			o.total, o.paid, o.due, o.status, o.created_at
		FROM orders o
		JOIN customers c ON c.id = o.customer_id`+where+`
		ORDER BY o.id
		LIMIT NULLIF($2::int, 0) OFFSET $3::int
	`, search, max(filter.Limit, 0), max(filter.Offset, 0))
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	summaries := make([]domain.OrderSummary, 0, max(filter.Limit, 16))
	for rows.Next() {
		var o domain.OrderSummary
		if err := rows.Scan(&o.ID, &o.CustomerName, &o.TotalItem, &o.SubTotal, &o.Discount, &o.OrderDiscount,
			&o.Total, &o.Paid, &o.Due, &o.Status, &o.CreatedAt); err != nil {
			return nil, 0, 0, err
		}
		o.CreatedAt = o.CreatedAt.UTC()
		summaries = append(summaries, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}
	return summaries, total, filtered, nil
}

// CollectDue locks the order row so concurrent collections cannot both pass
// the outstanding balance check.
func (s *Store) CollectDue(ctx context.Context, orderID int64, payment domain.Payment) (*domain.Order, *domain.Transaction, error) {
	if !payment.Amount.IsPositive() {
		return nil, nil, store.ErrInvalidTransaction
	}
	if payment.PaidBy == "" {
		payment.PaidBy = domain.PaidByCash
	}
	if payment.At.IsZero() {
		payment.At = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var customerID int64
	var due, paid decimal.Decimal
	err = pgTx.QueryRowContext(ctx, `
		SELECT customer_id, due, paid
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, orderID).Scan(&customerID, &due, &paid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, store.ErrNotFound
		}
		return nil, nil, err
	}
	if !due.IsPositive() {
		return nil, nil, store.ErrAlreadyPaid
	}
	if payment.Amount.GreaterThan(due) {
		return nil, nil, store.ErrExceedsDue
	}

	newDue, newPaid, status := pricing.Collect(due, paid, payment.Amount)
	_, err = pgTx.ExecContext(ctx, `
		UPDATE orders
		SET due = $2, paid = $3, status = $4, updated_at = now()
		WHERE id = $1
	`, orderID, newDue, newPaid, status)
	if err != nil {
		return nil, nil, err
	}

	tx := domain.Transaction{
		OrderID:    orderID,
		CustomerID: customerID,
		UserID:     payment.UserID,
		Amount:     payment.Amount,
		PaidBy:     payment.PaidBy,
		CreatedAt:  payment.At.UTC(),
	}
	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO order_transactions (order_id, customer_id, user_id, amount, paid_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, tx.OrderID, tx.CustomerID, tx.UserID, tx.Amount, tx.PaidBy, tx.CreatedAt).Scan(&tx.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, nil, err
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, &tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, order_id, customer_id, user_id, amount, paid_by, created_at
		FROM order_transactions
		WHERE id = $1
	`, id).Scan(&tx.ID, &tx.OrderID, &tx.CustomerID, &tx.UserID, &tx.Amount, &tx.PaidBy, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	return &tx, nil
}

func (s *Store) ListTransactionsByOrder(ctx context.Context, orderID int64) ([]domain.Transaction, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, customer_id, user_id, amount, paid_by, created_at
		FROM order_transactions
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0, 4)
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.OrderID, &tx.CustomerID, &tx.UserID, &tx.Amount, &tx.PaidBy, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.CreatedAt = tx.CreatedAt.UTC()
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *Store) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string, 16)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpsertSettings(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at)
			VALUES ($1,$2,now())
			ON CONFLICT (key)
			DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		`, k, values[k])
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO app_users (username, name, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
		RETURNING id
	`, user.Username, user.Name, user.Password, user.Role, user.Active, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidTransaction
		}
		return nil, err
	}
	created := user
	return &created, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, name, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.Username, &user.Name, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
