package notify

import (
	"strings"
	"time"

	"posorder/backend/internal/domain"
	"posorder/backend/internal/pricing"
	"posorder/backend/internal/settings"
)

const dateLayout = "02/01/2006"

type InvoicePayload struct {
	OrderID         int64         `json:"order_id"`
	SaleDate        string        `json:"sale_date"`
	CurrentDate     string        `json:"current_date"`
	UserName        string        `json:"user_name"`
	SiteName        string        `json:"site_name"`
	SiteLogoURL     string        `json:"site_logo_url"`
	ContactAddress  string        `json:"contact_address"`
	ContactPhone    string        `json:"contact_phone"`
	ContactEmail    string        `json:"contact_email"`
	CustomerName    string        `json:"customer_name"`
	CustomerAddress string        `json:"customer_address"`
	CustomerPhone   string        `json:"customer_phone"`
	CustomerEmail   string        `json:"customer_email"`
	SubTotal        string        `json:"sub_total"`
	Discount        string        `json:"discount"`
	ItemDiscount    string        `json:"item_discount"`
	Total           string        `json:"total"`
	Paid            string        `json:"paid"`
	Due             string        `json:"due"`
	NoteToCustomer  string        `json:"note_to_customer"`
	Products        []InvoiceLine `json:"products"`
}

type InvoiceLine struct {
	SN                int    `json:"sn"`
	ProductName       string `json:"product_name"`
	Quantity          int    `json:"quantity"`
	UnitShortName     string `json:"unit_short_name"`
	OriginalPrice     string `json:"original_price"`
	DiscountedPrice   string `json:"discounted_price"`
	TotalItemPrice    string `json:"total_item_price"`
	HasDiscountOnItem bool   `json:"has_discount_on_item"`
}

// BuildInvoicePayload renders a loaded order into the document the invoice
// webhook expects. Store details are included only when their show flag is on.
func BuildInvoicePayload(order *domain.Order, actorName string, cfg settings.Lookup, assetBaseURL string, now time.Time) InvoicePayload {
	userName := strings.TrimSpace(actorName)
	if userName == "" {
		userName = "System User"
	}

	payload := InvoicePayload{
		OrderID:        order.ID,
		SaleDate:       order.CreatedAt.Format(dateLayout),
		CurrentDate:    now.Format(dateLayout),
		UserName:       userName,
		SiteName:       cfg.Gate(settings.ShowSite, settings.SiteName),
		ContactAddress: cfg.Gate(settings.ShowAddress, settings.ContactAddress),
		ContactPhone:   cfg.Gate(settings.ShowPhone, settings.ContactPhone),
		ContactEmail:   cfg.Gate(settings.ShowEmail, settings.ContactEmail),
		SubTotal:       pricing.Fixed(order.SubTotal),
		Discount:       pricing.Fixed(order.OrderDiscount),
		ItemDiscount:   pricing.Fixed(order.Discount),
		Total:          pricing.Fixed(order.Total),
		Paid:           pricing.Fixed(order.Paid),
		Due:            pricing.Fixed(order.Due),
		NoteToCustomer: cfg.Gate(settings.ShowNote, settings.NoteToCustomer),
		Products:       make([]InvoiceLine, 0, len(order.Lines)),
	}

	if cfg.Bool(settings.ShowLogo) {
		payload.SiteLogoURL = assetURL(assetBaseURL, cfg.String(settings.SiteLogo, ""))
	}

	if cfg.Bool(settings.ShowCustomer) {
		var c domain.Customer
		if order.Customer != nil {
			c = *order.Customer
		}
		payload.CustomerName = orDefault(c.Name, "N/A")
		payload.CustomerAddress = orDefault(c.Address, "N/A")
		payload.CustomerPhone = orDefault(c.Phone, "N/A")
		payload.CustomerEmail = c.Email
	}

	for i, line := range order.Lines {
		item := InvoiceLine{
			SN:                i + 1,
			Quantity:          line.Quantity,
			OriginalPrice:     pricing.Fixed(line.Price),
			DiscountedPrice:   pricing.Fixed(line.DiscountedPrice),
			TotalItemPrice:    pricing.Fixed(line.Total),
			HasDiscountOnItem: line.Price.GreaterThan(line.DiscountedPrice),
		}
		if line.Product != nil {
			item.ProductName = line.Product.Name
			item.UnitShortName = line.Product.UnitShortName
		}
		payload.Products = append(payload.Products, item)
	}

	return payload
}

func assetURL(base string, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "/" + strings.TrimLeft(path, "/")
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

func orDefault(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
