package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climastore/backend/internal/entity"
)

func checkoutCommand(identity Identity) CheckoutCommand {
	return CheckoutCommand{
		Identity:      identity,
		CustomerEmail: "jan@example.com",
		ShippingAddress: entity.Address{
			Line1:      "12 Cooling Lane",
			City:       "Rotterdam",
			PostalCode: "3011 AB",
			Country:    "NL",
		},
		ShippingMethod: "standard",
	}
}

func newCheckoutService(f *fixture) *CheckoutService {
	return NewCheckoutService(f.uow, DefaultShippingRates(), f.pub, nil, nil)
}

func TestCheckout(t *testing.T) {
	f := newFixture()
	f.addProduct("prod-1", "ArcticBreeze 9000", true)
	f.addVariant("var-1", "prod-1", "9000 BTU", "AB-9000", "100.00", 10, true)
	owner := entity.UserOwner("user-1")
	f.putCart(t, owner, cartItem("prod-1", "var-1", 1, "100.00"))

	svc := newCheckoutService(f)
	order, err := svc.Checkout(context.Background(), checkoutCommand(Identity{UserID: "user-1"}))
	require.NoError(t, err)

	assert.Equal(t, entity.OrderStatusPending, order.Status)
	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("100.00")), "subtotal = %s", order.Subtotal)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("100.00")), "total = %s", order.Total)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "ArcticBreeze 9000", order.Items[0].ProductName)
	assert.Equal(t, "AB-9000", order.Items[0].SKU)

	// Stock is debited and the cart emptied in the same transaction.
	assert.Equal(t, 9, f.stock(t, "var-1"))
	assert.True(t, f.cartByOwner(owner).IsEmpty())

	stored := f.storedOrder(t, order.ID)
	require.Len(t, stored.Events, 1)
	assert.Equal(t, entity.OrderStatusPending, stored.Events[0].Status)

	assert.Equal(t, []string{"OrderPlaced"}, f.pub.eventTypes())
}

func TestCheckoutIncludesShippingCost(t *testing.T) {
	f := newFixture()
	f.addProduct("prod-1", "ArcticBreeze 9000", true)
	f.addVariant("var-1", "prod-1", "9000 BTU", "AB-9000", "100.00", 10, true)
	f.putCart(t, entity.UserOwner("user-1"), cartItem("prod-1", "var-1", 2, "100.00"))

	cmd := checkoutCommand(Identity{UserID: "user-1"})
	cmd.ShippingMethod = "express"

	order, err := newCheckoutService(f).Checkout(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("214.90")), "total = %s", order.Total)
}

func TestCheckoutSnapshotsCurrentVariantPrice(t *testing.T) {
	f := newFixture()
	f.addProduct("prod-1", "ArcticBreeze 9000", true)
	// The catalog price changed since the item was put in the cart.
	f.addVariant("var-1", "prod-1", "9000 BTU", "AB-9000", "120.00", 10, true)
	f.putCart(t, entity.UserOwner("user-1"), cartItem("prod-1", "var-1", 1, "100.00"))

	order, err := newCheckoutService(f).Checkout(context.Background(), checkoutCommand(Identity{UserID: "user-1"}))
	require.NoError(t, err)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.RequireFromString("120.00")))
}

func TestCheckoutGuest(t *testing.T) {
	f := newFixture()
	f.addProduct("prod-1", "ArcticBreeze 9000", true)
	f.addVariant("var-1", "prod-1", "9000 BTU", "AB-9000", "100.00", 5, true)
	f.putCart(t, entity.GuestOwner("sess-1"), cartItem("prod-1", "var-1", 1, "100.00"))

	order, err := newCheckoutService(f).Checkout(context.Background(), checkoutCommand(Identity{GuestSessionID: "sess-1"}))
	require.NoError(t, err)

	sid, ok := order.Owner.GuestSessionID()
	require.True(t, ok)
	assert.Equal(t, "sess-1", sid)
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture()
	svc := newCheckoutService(f)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, checkoutCommand(Identity{}))
	assert.ErrorIs(t, err, entity.ErrNoIdentity)

	cmd := checkoutCommand(Identity{UserID: "user-1"})
	cmd.CustomerEmail = ""
	_, err = svc.Checkout(ctx, cmd)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)

	cmd = checkoutCommand(Identity{UserID: "user-1"})
	cmd.ShippingAddress = entity.Address{}
	_, err = svc.Checkout(ctx, cmd)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)

	cmd = checkoutCommand(Identity{UserID: "user-1"})
	cmd.ShippingMethod = "teleport"
	_, err = svc.Checkout(ctx, cmd)
	assert.ErrorIs(t, err, entity.ErrUnknownShippingMethod)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture()
	svc := newCheckoutService(f)
	ctx := context.Background()

	// No cart at all.
	_, err := svc.Checkout(ctx, checkoutCommand(Identity{UserID: "user-1"}))
	assert.ErrorIs(t, err, entity.ErrCartEmpty)

	// A cart with no lines.
	f.putCart(t, entity.UserOwner("user-2"))
	_, err = svc.Checkout(ctx, checkoutCommand(Identity{UserID: "user-2"}))
	assert.ErrorIs(t, err, entity.ErrCartEmpty)
}

func TestCheckoutInactiveProduct(t *testing.T) {
	f := newFixture()
	f.addProduct("prod-1", "ArcticBreeze 9000", false)
	f.addVariant("var-1", "prod-1", "9000 BTU", "AB-9000", "100.00", 10, true)
	owner := entity.UserOwner("user-1")
	f.putCart(t, owner, cartItem("prod-1", "var-1", 1, "100.00"))

	_, err := newCheckoutService(f).Checkout(context.Background(), checkoutCommand(Identity{UserID: "user-1"}))
	assert.ErrorIs(t, err, entity.ErrProductUnavailable)

	assert.Equal(t, 10, f.stock(t, "var-1"))
	assert.False(t, f.cartByOwner(owner).IsEmpty())
	assert.Empty(t, f.state.Orders)
	assert.Empty(t, f.pub.events)
}

func TestCheckoutInactiveVariant(t *testing.T) {
	f := newFixture()
	f.addProduct("prod-1", "ArcticBreeze 9000", true)
	f.addVariant("var-1", "prod-1", "9000 BTU", "AB-9000", "100.00", 10, false)
	f.putCart(t, entity.UserOwner("user-1"), cartItem("prod-1", "var-1", 1, "100.00"))

	_, err := newCheckoutService(f).Checkout(context.Background(), checkoutCommand(Identity{UserID: "user-1"}))
	assert.ErrorIs(t, err, entity.ErrVariantUnavailable)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	f := newFixture()
	f.addProduct("prod-1", "ArcticBreeze 9000", true)
	f.addVariant("var-1", "prod-1", "9000 BTU", "AB-9000", "100.00", 3, true)
	f.putCart(t, entity.UserOwner("user-1"), cartItem("prod-1", "var-1", 4, "100.00"))

	_, err := newCheckoutService(f).Checkout(context.Background(), checkoutCommand(Identity{UserID: "user-1"}))
	assert.ErrorIs(t, err, entity.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "only 3 left in stock")

	assert.Equal(t, 3, f.stock(t, "var-1"))
	assert.Empty(t, f.state.Orders)
}

func TestCheckoutOneBadLineAbortsAll(t *testing.T) {
	f := newFixture()
	f.addProduct("prod-1", "ArcticBreeze 9000", true)
	f.addVariant("var-1", "prod-1", "9000 BTU", "AB-9000", "100.00", 10, true)
	f.addProduct("prod-2", "PolarFan", true)
	f.addVariant("var-2", "prod-2", "Desk", "PF-D", "50.00", 1, true)

	owner := entity.UserOwner("user-1")
	f.putCart(t, owner,
		cartItem("prod-1", "var-1", 2, "100.00"),
		cartItem("prod-2", "var-2", 3, "50.00"))

	_, err := newCheckoutService(f).Checkout(context.Background(), checkoutCommand(Identity{UserID: "user-1"}))
	assert.ErrorIs(t, err, entity.ErrInsufficientStock)

	// Neither line was debited and the cart kept both lines.
	assert.Equal(t, 10, f.stock(t, "var-1"))
	assert.Equal(t, 1, f.stock(t, "var-2"))
	assert.Len(t, f.cartByOwner(owner).Items, 2)
	assert.Empty(t, f.state.Orders)
}
