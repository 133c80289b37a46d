package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is a domain event published to the message bus.
type Event interface {
	EventType() string
}

// OrderPlaced is emitted after a checkout commits.
type OrderPlaced struct {
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	CustomerEmail string          `json:"customer_email"`
	Items         []OrderItem     `json:"items"`
	Total         decimal.Decimal `json:"total"`
	PlacedAt      time.Time       `json:"placed_at"`
}

func (e OrderPlaced) EventType() string { return "OrderPlaced" }

// OrderCancelled is emitted after a cancellation commits. Stock for the
// order's items has already been credited back when this is published.
type OrderCancelled struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

func (e OrderCancelled) EventType() string { return "OrderCancelled" }

// OrderStatusChanged is emitted on every other status transition
// (paid, processing, shipped, delivered).
type OrderStatusChanged struct {
	OrderID     string      `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	From        OrderStatus `json:"from"`
	To          OrderStatus `json:"to"`
	ChangedAt   time.Time   `json:"changed_at"`
}

func (e OrderStatusChanged) EventType() string { return "OrderStatusChanged" }

// PaymentCaptured is consumed from the payment gateway integration; only
// the confirmation result crosses into this service.
type PaymentCaptured struct {
	OrderID    string          `json:"order_id"`
	Amount     decimal.Decimal `json:"amount"`
	CapturedAt time.Time       `json:"captured_at"`
}

func (e PaymentCaptured) EventType() string { return "PaymentCaptured" }
