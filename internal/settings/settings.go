package settings

import (
	"strings"
)

const (
	SiteName        = "site_name"
	SiteLogo        = "site_logo"
	ContactAddress  = "contact_address"
	ContactPhone    = "contact_phone"
	ContactEmail    = "contact_email"
	NoteToCustomer  = "note_to_customer_invoice"
	ReceiptMaxWidth = "receiptMaxwidth"

	ShowSite     = "is_show_site_invoice"
	ShowLogo     = "is_show_logo_invoice"
	ShowAddress  = "is_show_address_invoice"
	ShowPhone    = "is_show_phone_invoice"
	ShowEmail    = "is_show_email_invoice"
	ShowCustomer = "is_show_customer_invoice"
	ShowNote     = "is_show_note_invoice"
)

var defaults = map[string]string{
	SiteName:        "POS",
	ReceiptMaxWidth: "300px",
	ShowSite:        "1",
	ShowLogo:        "1",
	ShowAddress:     "1",
	ShowPhone:       "1",
	ShowEmail:       "1",
	ShowCustomer:    "1",
	ShowNote:        "0",
}

// Lookup is a read-only view over stored settings with defaults applied.
type Lookup struct {
	values map[string]string
}

func New(stored map[string]string) Lookup {
	values := make(map[string]string, len(defaults)+len(stored))
	for k, v := range defaults {
		values[k] = v
	}
	for k, v := range stored {
		values[k] = v
	}
	return Lookup{values: values}
}

func (l Lookup) String(key string, fallback string) string {
	v, ok := l.values[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func (l Lookup) Bool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(l.values[key])) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Gate returns the value of key when flag is enabled and "" otherwise.
func (l Lookup) Gate(flag string, key string) string {
	if !l.Bool(flag) {
		return ""
	}
	return l.values[key]
}

func (l Lookup) All() map[string]string {
	out := make(map[string]string, len(l.values))
	for k, v := range l.values {
		out[k] = v
	}
	return out
}

// IsKnown reports whether key is one of the settings the application reads.
func IsKnown(key string) bool {
	switch key {
	case SiteName, SiteLogo, ContactAddress, ContactPhone, ContactEmail, NoteToCustomer, ReceiptMaxWidth,
		ShowSite, ShowLogo, ShowAddress, ShowPhone, ShowEmail, ShowCustomer, ShowNote:
		return true
	}
	return false
}
