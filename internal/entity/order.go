package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// OrderStatus is the closed set of order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// orderStatusTransitions is the full transition table. A status missing a
// target here cannot reach it; shipped, delivered and cancelled are terminal
// with respect to cancellation.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// IsValid reports whether the status is one of the known states.
func (s OrderStatus) IsValid() bool {
	_, ok := orderStatusTransitions[s]
	return ok
}

// CanTransitionTo reports whether moving to next is a legal transition.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, t := range orderStatusTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether cancellation is still possible from this status.
func (s OrderStatus) Cancellable() bool {
	return s.CanTransitionTo(OrderStatusCancelled)
}

// OrderEvent is one entry of an order's append-only status log.
type OrderEvent struct {
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// Address is the shipping address value object.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Validate rejects addresses missing required fields.
func (a Address) Validate() error {
	var missing []string
	if a.Line1 == "" {
		missing = append(missing, "line1")
	}
	if a.City == "" {
		missing = append(missing, "city")
	}
	if a.PostalCode == "" {
		missing = append(missing, "postal_code")
	}
	if a.Country == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: shipping address missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// OrderItem is a line of an order, snapshotted at checkout time. It copies
// the product and variant names, SKU and unit price so the order stays
// accurate even if the catalog changes later.
type OrderItem struct {
	ProductID   string          `json:"product_id"`
	VariantID   string          `json:"variant_id"`
	ProductName string          `json:"product_name"`
	VariantName string          `json:"variant_name"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// LineTotal returns UnitPrice * Quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a placed order. Its item list is written once at creation and
// never mutated afterwards; only the status (and its event log) changes.
type Order struct {
	ID                 string          `json:"id"`
	Number             string          `json:"number"`
	Owner              CartOwner       `json:"owner"`
	CustomerEmail      string          `json:"customer_email"`
	CustomerPhone      string          `json:"customer_phone,omitempty"`
	ShippingAddress    Address         `json:"shipping_address"`
	ShippingMethod     string          `json:"shipping_method"`
	Items              []OrderItem     `json:"items"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	ShippingCost       decimal.Decimal `json:"shipping_cost"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	Total              decimal.Decimal `json:"total"`
	Status             OrderStatus     `json:"status"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	Events             []OrderEvent    `json:"events"`
	CreatedAt          time.Time       `json:"created_at"`
}

// NewOrderNumber generates a globally unique, roughly time-ordered order
// number of the form ORD-01J....
func NewOrderNumber() string {
	return "ORD-" + ulid.Make().String()
}

// NewOrder assembles a pending order from checkout inputs. Subtotal is
// derived from the item snapshots and the total from
// subtotal + shipping + tax - discount; neither is recomputed afterwards.
func NewOrder(owner CartOwner, email, phone string, address Address, shippingMethod string,
	items []OrderItem, shippingCost, taxAmount, discountAmount decimal.Decimal) (*Order, error) {

	if owner.IsZero() {
		return nil, ErrNoIdentity
	}
	if email == "" {
		return nil, fmt.Errorf("%w: customer email is required", ErrInvalidInput)
	}
	if err := address.Validate(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}

	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal())
	}

	now := time.Now().UTC()
	return &Order{
		ID:              uuid.New().String(),
		Number:          NewOrderNumber(),
		Owner:           owner,
		CustomerEmail:   email,
		CustomerPhone:   phone,
		ShippingAddress: address,
		ShippingMethod:  shippingMethod,
		Items:           items,
		Subtotal:        subtotal,
		ShippingCost:    shippingCost,
		TaxAmount:       taxAmount,
		DiscountAmount:  discountAmount,
		Total:           subtotal.Add(shippingCost).Add(taxAmount).Sub(discountAmount),
		Status:          OrderStatusPending,
		Events:          []OrderEvent{{Status: OrderStatusPending, CreatedAt: now}},
		CreatedAt:       now,
	}, nil
}

// TransitionTo moves the order to the next status, appending an OrderEvent.
// Illegal transitions fail and leave the order untouched.
func (o *Order) TransitionTo(next OrderStatus, at time.Time) (OrderEvent, error) {
	if !next.IsValid() {
		return OrderEvent{}, fmt.Errorf("%w: unknown status %q", ErrInvalidStatusTransition, next)
	}
	if !o.Status.CanTransitionTo(next) {
		return OrderEvent{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, o.Status, next)
	}
	o.Status = next
	ev := OrderEvent{Status: next, CreatedAt: at.UTC()}
	o.Events = append(o.Events, ev)
	return ev, nil
}

// Cancel transitions the order to cancelled, recording when and why. Only
// pending and paid orders can be cancelled; anything else fails with
// ErrOrderCannotBeCancelled, which also guards against a double cancel.
func (o *Order) Cancel(reason string, at time.Time) (OrderEvent, error) {
	if !o.Status.Cancellable() {
		return OrderEvent{}, fmt.Errorf("%w: status is %s", ErrOrderCannotBeCancelled, o.Status)
	}
	ev, err := o.TransitionTo(OrderStatusCancelled, at)
	if err != nil {
		return OrderEvent{}, err
	}
	cancelledAt := at.UTC()
	o.CancelledAt = &cancelledAt
	o.CancellationReason = reason
	return ev, nil
}
