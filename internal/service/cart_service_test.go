package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climastore/backend/internal/entity"
)

// mapCache is an in-process CartCache for asserting cache interactions.
type mapCache struct {
	entries map[string]*entity.Cart
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]*entity.Cart{}}
}

func (c *mapCache) Get(ctx context.Context, owner entity.CartOwner) (*entity.Cart, bool) {
	cart, ok := c.entries[owner.Key()]
	return cart, ok
}

func (c *mapCache) Set(ctx context.Context, cart *entity.Cart) {
	c.entries[cart.Owner.Key()] = cart
}

func (c *mapCache) Invalidate(ctx context.Context, owner entity.CartOwner) {
	delete(c.entries, owner.Key())
}

func TestGetCartReturnsEmptyCartForNewOwner(t *testing.T) {
	f := newFixture()
	svc := NewCartService(f.uow, nil)

	cart, err := svc.Get(context.Background(), Identity{UserID: "user-1"})
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	// No row is created until the first add.
	assert.Nil(t, f.cartByOwner(entity.UserOwner("user-1")))

	_, err = svc.Get(context.Background(), Identity{})
	assert.ErrorIs(t, err, entity.ErrNoIdentity)
}

func TestGetCartUsesCache(t *testing.T) {
	f := newFixture()
	cache := newMapCache()
	svc := NewCartService(f.uow, cache)

	owner := entity.UserOwner("user-1")
	cached, err := entity.NewCart(owner)
	require.NoError(t, err)
	require.NoError(t, cached.AddItem("prod-1", "var-1", 2, decimal.RequireFromString("99.00")))
	cache.Set(context.Background(), cached)

	cart, err := svc.Get(context.Background(), Identity{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, cached.ID, cart.ID)
	assert.Len(t, cart.Items, 1)
}

func TestAddItemCreatesCartAndCapturesPrice(t *testing.T) {
	f := newFixture()
	f.addProduct("prod-1", "ArcticBreeze 9000", true)
	f.addVariant("var-1", "prod-1", "9000 BTU", "AB-9000", "99.50", 10, true)
	svc := NewCartService(f.uow, nil)

	cart, err := svc.AddItem(context.Background(), Identity{GuestSessionID: "sess-1"}, "var-1", 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, "prod-1", cart.Items[0].ProductID)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.True(t, cart.Items[0].UnitPrice.Equal(decimal.RequireFromString("99.50")))

	stored := f.cartByOwner(entity.GuestOwner("sess-1"))
	require.NotNil(t, stored)
	assert.Len(t, stored.Items, 1)
}

func TestAddItemMergesExistingLine(t *testing.T) {
	f := newFixture()
	f.addProduct("prod-1", "ArcticBreeze 9000", true)
	f.addVariant("var-1", "prod-1", "9000 BTU", "AB-9000", "99.50", 10, true)
	svc := NewCartService(f.uow, nil)
	ctx := context.Background()
	identity := Identity{UserID: "user-1"}

	_, err := svc.AddItem(ctx, identity, "var-1", 2)
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, identity, "var-1", 3)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestAddItemValidation(t *testing.T) {
	f := newFixture()
	f.addProduct("prod-1", "ArcticBreeze 9000", true)
	f.addVariant("var-1", "prod-1", "9000 BTU", "AB-9000", "99.50", 10, true)
	f.addProduct("prod-2", "PolarFan", false)
	f.addVariant("var-2", "prod-2", "Desk", "PF-D", "50.00", 10, true)
	f.addProduct("prod-3", "HeatWave", true)
	f.addVariant("var-3", "prod-3", "Mini", "HW-M", "30.00", 10, false)

	svc := NewCartService(f.uow, nil)
	ctx := context.Background()
	identity := Identity{UserID: "user-1"}

	_, err := svc.AddItem(ctx, identity, "var-1", 0)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)

	_, err = svc.AddItem(ctx, identity, "var-missing", 1)
	assert.ErrorIs(t, err, entity.ErrVariantNotFound)

	_, err = svc.AddItem(ctx, identity, "var-2", 1)
	assert.ErrorIs(t, err, entity.ErrProductUnavailable)

	_, err = svc.AddItem(ctx, identity, "var-3", 1)
	assert.ErrorIs(t, err, entity.ErrVariantUnavailable)

	// None of the rejected adds created a cart.
	assert.Nil(t, f.cartByOwner(entity.UserOwner("user-1")))
}

func TestUpdateRemoveClear(t *testing.T) {
	f := newFixture()
	owner := entity.UserOwner("user-1")
	f.putCart(t, owner,
		cartItem("prod-1", "var-1", 2, "99.50"),
		cartItem("prod-2", "var-2", 1, "50.00"))

	svc := NewCartService(f.uow, nil)
	ctx := context.Background()
	identity := Identity{UserID: "user-1"}

	cart, err := svc.UpdateItemQuantity(ctx, identity, "var-1", 5)
	require.NoError(t, err)
	item, _ := cart.Item("var-1")
	assert.Equal(t, 5, item.Quantity)

	cart, err = svc.RemoveItem(ctx, identity, "var-2")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)

	_, err = svc.RemoveItem(ctx, identity, "var-2")
	assert.ErrorIs(t, err, entity.ErrCartItemNotFound)

	cart, err = svc.Clear(ctx, identity)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.True(t, f.cartByOwner(owner).IsEmpty())
}

func TestMutateMissingCart(t *testing.T) {
	f := newFixture()
	svc := NewCartService(f.uow, nil)

	_, err := svc.UpdateItemQuantity(context.Background(), Identity{UserID: "user-1"}, "var-1", 2)
	assert.ErrorIs(t, err, entity.ErrCartNotFound)
}

func TestMergeGuestCartIntoUserCart(t *testing.T) {
	f := newFixture()
	userOwner := entity.UserOwner("user-1")
	guestOwner := entity.GuestOwner("sess-1")
	f.putCart(t, userOwner, cartItem("prod-1", "var-1", 2, "100.00"))
	f.putCart(t, guestOwner,
		cartItem("prod-1", "var-1", 3, "100.00"),
		cartItem("prod-2", "var-2", 1, "50.00"))

	cache := newMapCache()
	cache.entries[guestOwner.Key()] = &entity.Cart{}

	svc := NewCartService(f.uow, cache)
	cart, err := svc.Merge(context.Background(), "sess-1", Identity{UserID: "user-1"})
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	merged, _ := cart.Item("var-1")
	assert.Equal(t, 5, merged.Quantity)

	assert.True(t, f.cartByOwner(guestOwner).IsEmpty())
	assert.Len(t, f.cartByOwner(userOwner).Items, 2)

	// The stale guest entry is gone and the user entry is fresh.
	_, ok := cache.Get(context.Background(), guestOwner)
	assert.False(t, ok)
	fresh, ok := cache.Get(context.Background(), userOwner)
	require.True(t, ok)
	assert.Len(t, fresh.Items, 2)
}

func TestMergeRequiresUser(t *testing.T) {
	f := newFixture()
	svc := NewCartService(f.uow, nil)

	_, err := svc.Merge(context.Background(), "sess-1", Identity{GuestSessionID: "sess-1"})
	assert.ErrorIs(t, err, entity.ErrUnauthorized)
}

func TestMergeMissingGuestCart(t *testing.T) {
	f := newFixture()
	userOwner := entity.UserOwner("user-1")
	f.putCart(t, userOwner, cartItem("prod-1", "var-1", 2, "100.00"))

	svc := NewCartService(f.uow, nil)
	cart, err := svc.Merge(context.Background(), "sess-unknown", Identity{UserID: "user-1"})
	require.NoError(t, err)

	assert.Len(t, cart.Items, 1)
	assert.Len(t, f.cartByOwner(userOwner).Items, 1)
}
