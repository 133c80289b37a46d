package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartOwner identifies who a cart (or order) belongs to: exactly one of an
// authenticated user or an anonymous guest session. The zero value means
// "no identity" and is rejected wherever an owner is required, so the
// "both set" and "neither set" states are unrepresentable.
type CartOwner struct {
	userID         string
	guestSessionID string
}

// UserOwner returns the owner for an authenticated user.
func UserOwner(userID string) CartOwner {
	return CartOwner{userID: userID}
}

// GuestOwner returns the owner for an anonymous guest session.
func GuestOwner(sessionID string) CartOwner {
	return CartOwner{guestSessionID: sessionID}
}

// UserID returns the user id and true when the owner is an authenticated user.
func (o CartOwner) UserID() (string, bool) {
	return o.userID, o.userID != ""
}

// GuestSessionID returns the session id and true when the owner is a guest.
func (o CartOwner) GuestSessionID() (string, bool) {
	return o.guestSessionID, o.guestSessionID != ""
}

func (o CartOwner) IsZero() bool {
	return o.userID == "" && o.guestSessionID == ""
}

// Key returns a stable string usable as a cache or log key.
func (o CartOwner) Key() string {
	if o.userID != "" {
		return "user:" + o.userID
	}
	if o.guestSessionID != "" {
		return "guest:" + o.guestSessionID
	}
	return "none"
}

type cartOwnerJSON struct {
	UserID         string `json:"user_id,omitempty"`
	GuestSessionID string `json:"guest_session_id,omitempty"`
}

func (o CartOwner) MarshalJSON() ([]byte, error) {
	return json.Marshal(cartOwnerJSON{UserID: o.userID, GuestSessionID: o.guestSessionID})
}

func (o *CartOwner) UnmarshalJSON(data []byte) error {
	var raw cartOwnerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.userID = raw.UserID
	o.guestSessionID = raw.GuestSessionID
	return nil
}

// CartItem is a line in a cart. UnitPrice is the variant price captured at
// the moment the item was added.
type CartItem struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// LineTotal returns UnitPrice * Quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart holds the line items for one owner. There is at most one line per
// variant; adding a variant that is already present merges quantities.
type Cart struct {
	ID        string     `json:"id"`
	Owner     CartOwner  `json:"owner"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewCart creates an empty cart for the given owner.
func NewCart(owner CartOwner) (*Cart, error) {
	if owner.IsZero() {
		return nil, ErrNoIdentity
	}
	now := time.Now().UTC()
	return &Cart{
		ID:        uuid.New().String(),
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Item returns the line for the given variant, if present.
func (c *Cart) Item(variantID string) (CartItem, bool) {
	for _, it := range c.Items {
		if it.VariantID == variantID {
			return it, true
		}
	}
	return CartItem{}, false
}

// AddItem adds quantity of a variant to the cart. If the variant is already
// in the cart its quantity is incremented; the unit price recorded at the
// first add is kept.
func (c *Cart) AddItem(productID, variantID string, quantity int, unitPrice decimal.Decimal) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			c.Items[i].Quantity += quantity
			c.touch()
			return nil
		}
	}
	c.Items = append(c.Items, CartItem{
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
	})
	c.touch()
	return nil
}

// SetItemQuantity replaces the quantity of an existing line.
func (c *Cart) SetItemQuantity(variantID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			c.Items[i].Quantity = quantity
			c.touch()
			return nil
		}
	}
	return ErrCartItemNotFound
}

// RemoveItem deletes the line for the given variant.
func (c *Cart) RemoveItem(variantID string) error {
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.touch()
			return nil
		}
	}
	return ErrCartItemNotFound
}

// Clear removes all lines.
func (c *Cart) Clear() {
	c.Items = nil
	c.touch()
}

// Subtotal returns the sum of all line totals.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// MergeFrom moves every line of the other cart into this one, summing
// quantities for variants present in both. The other cart is emptied.
func (c *Cart) MergeFrom(other *Cart) {
	if other == nil {
		return
	}
	for _, it := range other.Items {
		merged := false
		for i := range c.Items {
			if c.Items[i].VariantID == it.VariantID {
				c.Items[i].Quantity += it.Quantity
				merged = true
				break
			}
		}
		if !merged {
			c.Items = append(c.Items, it)
		}
	}
	other.Clear()
	c.touch()
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
