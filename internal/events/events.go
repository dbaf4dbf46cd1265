package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderFinalized = "OrderFinalized"
	EventDueCollected   = "DueCollected"

	producerName = "pos-order-api"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderFinalizedPayload struct {
	OrderID       int64           `json:"order_id"`
	CustomerID    int64           `json:"customer_id"`
	UserID        int64           `json:"user_id"`
	TotalItem     int             `json:"total_item"`
	SubTotal      decimal.Decimal `json:"sub_total"`
	OrderDiscount decimal.Decimal `json:"order_discount"`
	Total         decimal.Decimal `json:"total"`
	Paid          decimal.Decimal `json:"paid"`
	Due           decimal.Decimal `json:"due"`
	Status        bool            `json:"status"`
}

type DueCollectedPayload struct {
	OrderID       int64           `json:"order_id"`
	TransactionID int64           `json:"transaction_id"`
	UserID        int64           `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Paid          decimal.Decimal `json:"paid"`
	Due           decimal.Decimal `json:"due"`
	Status        bool            `json:"status"`
}

// NewEnvelope wraps payload for publishing. The correlation id is the order id
// and doubles as the partition key.
func NewEnvelope(eventType string, orderID int64, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producerName,
		CorrelationID: fmt.Sprintf("%d", orderID),
		Payload:       raw,
	}, nil
}

type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

type Noop struct{}

func (Noop) Publish(_ context.Context, _ Envelope) error {
	return nil
}
