package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertEvent is emitted when a price alert crosses its threshold.
type AlertEvent struct {
	EventID      string          `json:"event_id"`
	AlertID      uint            `json:"alert_id"`
	UserID       uint            `json:"user_id"`
	StockSymbol  string          `json:"stock_symbol"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Direction    string          `json:"direction"`
	TriggeredAt  time.Time       `json:"triggered_at"`
}

// OrderEvent is emitted when an order process changes status.
type OrderEvent struct {
	EventID     string           `json:"event_id"`
	OrderID     uint             `json:"order_id"`
	RefCode     string           `json:"ref_code"`
	UserID      uint             `json:"user_id"`
	StockSymbol string           `json:"stock_symbol"`
	Status      string           `json:"status"`
	FillPrice   *decimal.Decimal `json:"fill_price,omitempty"`
	Message     string           `json:"message"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// Sink delivers alert and order events to connected clients. Delivery is
// fire-and-forget: failures are logged by the implementation and never
// surfaced to the pipeline.
type Sink interface {
	PushAlert(event AlertEvent)
	PushOrderUpdate(event OrderEvent)
}

// NewEventID returns a unique id for an outgoing event.
func NewEventID() string {
	return uuid.NewString()
}
