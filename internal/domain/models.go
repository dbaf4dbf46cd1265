package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"

	PaidByCash = "cash"
)

type Product struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	UnitShortName   string          `json:"unit_short_name,omitempty"`
	Price           decimal.Decimal `json:"price"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	PurchasePrice   decimal.Decimal `json:"purchase_price"`
	Quantity        int             `json:"quantity"`
	Active          bool            `json:"active"`
}

type Customer struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

type CartLine struct {
	UserID    int64 `json:"user_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CartAddRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CartUpdateRequest struct {
	Quantity int `json:"quantity"`
}

// CartItem is a cart line joined with its product for display.
type CartItem struct {
	ProductID       int64           `json:"product_id"`
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	Total           decimal.Decimal `json:"total"`
}

type CartResponse struct {
	Items    []CartItem      `json:"items"`
	SubTotal decimal.Decimal `json:"sub_total"`
}

type Order struct {
	ID            int64           `json:"id"`
	CustomerID    int64           `json:"customer_id"`
	UserID        int64           `json:"user_id"`
	SubTotal      decimal.Decimal `json:"sub_total"`
	Discount      decimal.Decimal `json:"discount"`
	OrderDiscount decimal.Decimal `json:"order_discount"`
	Total         decimal.Decimal `json:"total"`
	Paid          decimal.Decimal `json:"paid"`
	Due           decimal.Decimal `json:"due"`
	Status        bool            `json:"status"`
	TotalItem     int             `json:"total_item"`
	CreatedAt     time.Time       `json:"created_at"`
	Customer      *Customer       `json:"customer,omitempty"`
	Lines         []OrderLine     `json:"products"`
	Transactions  []Transaction   `json:"transactions"`
}

type OrderLine struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	ProductID       int64           `json:"product_id"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	PurchasePrice   decimal.Decimal `json:"purchase_price"`
	SubTotal        decimal.Decimal `json:"sub_total"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	Product         *Product        `json:"product,omitempty"`
}

type Transaction struct {
	ID         int64           `json:"id"`
	OrderID    int64           `json:"order_id"`
	CustomerID int64           `json:"customer_id"`
	UserID     int64           `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	PaidBy     string          `json:"paid_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

// OrderDraft is everything the repository needs to write an order
// aggregate in one unit of work.
type OrderDraft struct {
	CustomerID    int64
	UserID        int64
	OrderDiscount decimal.Decimal
	Paid          decimal.Decimal
	Lines         []CartLine
	CreatedAt     time.Time
}

type Payment struct {
	UserID int64
	Amount decimal.Decimal
	PaidBy string
	At     time.Time
}

// FinalizeOrderRequest keeps numeric fields raw so that malformed values
// surface as per-field validation messages instead of decode failures.
type FinalizeOrderRequest struct {
	CustomerID    json.RawMessage `json:"customer_id"`
	OrderDiscount json.RawMessage `json:"order_discount"`
	Paid          json.RawMessage `json:"paid"`
}

type FinalizeOrderResponse struct {
	Message string `json:"message"`
	Order   *Order `json:"order"`
}

type CollectionRequest struct {
	Amount json.RawMessage `json:"amount"`
}

type CollectionForm struct {
	Order *Order `json:"order"`
}

type CollectionReceipt struct {
	TransactionID    int64           `json:"transaction_id"`
	OrderID          int64           `json:"order_id"`
	CollectionAmount decimal.Decimal `json:"collection_amount"`
}

type CollectionInvoice struct {
	Order            *Order          `json:"order"`
	Transaction      Transaction     `json:"transaction"`
	CollectionAmount decimal.Decimal `json:"collection_amount"`
}

type InvoiceResponse struct {
	Order *Order `json:"order"`
}

type POSInvoiceResponse struct {
	Order    *Order `json:"order"`
	MaxWidth string `json:"max_width"`
}

type OrderTransactionsResponse struct {
	Order *Order `json:"order"`
}

type OrderFilter struct {
	Search string
	Offset int
	Limit  int
}

// OrderSummary is the listing projection of an order header.
type OrderSummary struct {
	ID            int64
	CustomerName  string
	TotalItem     int
	SubTotal      decimal.Decimal
	Discount      decimal.Decimal
	OrderDiscount decimal.Decimal
	Total         decimal.Decimal
	Paid          decimal.Decimal
	Due           decimal.Decimal
	Status        bool
	CreatedAt     time.Time
}

type GridQuery struct {
	Draw   int
	Start  int
	Length int
	Search string
}

type GridActions struct {
	Invoice       string `json:"invoice"`
	POSInvoice    string `json:"pos_invoice"`
	DueCollection string `json:"due_collection,omitempty"`
	Transactions  string `json:"transactions"`
}

type GridRow struct {
	Index         int         `json:"DT_RowIndex"`
	ID            int64       `json:"id"`
	SaleID        string      `json:"saleId"`
	Customer      string      `json:"customer"`
	Item          int         `json:"item"`
	SubTotal      string      `json:"sub_total"`
	Discount      string      `json:"discount"`
	OrderDiscount string      `json:"order_discount"`
	Total         string      `json:"total"`
	Paid          string      `json:"paid"`
	Due           string      `json:"due"`
	Status        string      `json:"status"`
	Actions       GridActions `json:"action"`
}

type OrderGrid struct {
	Draw            int       `json:"draw"`
	RecordsTotal    int       `json:"recordsTotal"`
	RecordsFiltered int       `json:"recordsFiltered"`
	Data            []GridRow `json:"data"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	Name        string `json:"name"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the authenticated user on whose behalf an operation runs.
type Actor struct {
	ID       int64
	Username string
	Name     string
	Role     string
}

type UserAccount struct {
	ID        int64
	Username  string
	Name      string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type CashierUser struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type SettingsResponse struct {
	Settings map[string]string `json:"settings"`
}

type SettingsUpdateRequest struct {
	Settings map[string]string `json:"settings"`
}
