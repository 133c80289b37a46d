package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/climastore/backend/internal/entity"
	"github.com/climastore/backend/internal/repository"
)

// memState is the in-memory store shared by the fake repositories. The fake
// unit of work snapshots it before each workflow and restores it on error,
// mimicking a transaction rollback.
type memState struct {
	Products map[string]*entity.Product
	Variants map[string]*entity.ProductVariant
	Carts    map[string]*entity.Cart
	Orders   map[string]*entity.Order
}

func newMemState() *memState {
	return &memState{
		Products: map[string]*entity.Product{},
		Variants: map[string]*entity.ProductVariant{},
		Carts:    map[string]*entity.Cart{},
		Orders:   map[string]*entity.Order{},
	}
}

func (s *memState) clone() *memState {
	data, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	out := newMemState()
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

type memUow struct {
	state *memState
	// onOrderLocked, when set, runs after a locked order read and can mutate
	// the stored state, standing in for a competing transaction that commits
	// in between the read and the write.
	onOrderLocked func(*memState)
}

func (u *memUow) Within(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	snapshot := u.state.clone()
	if err := fn(ctx, &memRepos{state: u.state, onOrderLocked: u.onOrderLocked}); err != nil {
		*u.state = *snapshot
		return err
	}
	return nil
}

type memRepos struct {
	state         *memState
	onOrderLocked func(*memState)
}

func (r *memRepos) Catalog() repository.CatalogRepository { return &memCatalog{state: r.state} }
func (r *memRepos) Carts() repository.CartRepository      { return &memCarts{state: r.state} }
func (r *memRepos) Orders() repository.OrderRepository {
	return &memOrders{state: r.state, onLocked: r.onOrderLocked}
}

type memCatalog struct {
	state *memState
}

func (c *memCatalog) ProductByID(ctx context.Context, id string) (*entity.Product, error) {
	p, ok := c.state.Products[id]
	if !ok {
		return nil, entity.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (c *memCatalog) VariantByID(ctx context.Context, id string) (*entity.ProductVariant, error) {
	v, ok := c.state.Variants[id]
	if !ok {
		return nil, entity.ErrVariantNotFound
	}
	cp := *v
	return &cp, nil
}

func (c *memCatalog) VariantForUpdate(ctx context.Context, id string) (*entity.ProductVariant, error) {
	return c.VariantByID(ctx, id)
}

func (c *memCatalog) VariantsByProduct(ctx context.Context, productID string) ([]entity.ProductVariant, error) {
	var out []entity.ProductVariant
	for _, v := range c.state.Variants {
		if v.ProductID == productID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *memCatalog) AdjustStock(ctx context.Context, variantID string, delta int) error {
	v, ok := c.state.Variants[variantID]
	if !ok {
		return entity.ErrVariantNotFound
	}
	return v.AdjustStock(delta)
}

type memCarts struct {
	state *memState
}

func copyCart(c *entity.Cart) *entity.Cart {
	data, err := json.Marshal(c)
	if err != nil {
		panic(err)
	}
	out := new(entity.Cart)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

func (r *memCarts) FindByOwner(ctx context.Context, owner entity.CartOwner) (*entity.Cart, error) {
	for _, c := range r.state.Carts {
		if c.Owner.Key() == owner.Key() {
			return copyCart(c), nil
		}
	}
	return nil, entity.ErrCartNotFound
}

func (r *memCarts) FindByOwnerForUpdate(ctx context.Context, owner entity.CartOwner) (*entity.Cart, error) {
	return r.FindByOwner(ctx, owner)
}

func (r *memCarts) FindByID(ctx context.Context, id string) (*entity.Cart, error) {
	c, ok := r.state.Carts[id]
	if !ok {
		return nil, entity.ErrCartNotFound
	}
	return copyCart(c), nil
}

func (r *memCarts) Save(ctx context.Context, cart *entity.Cart) error {
	r.state.Carts[cart.ID] = copyCart(cart)
	return nil
}

func (r *memCarts) Delete(ctx context.Context, id string) error {
	delete(r.state.Carts, id)
	return nil
}

type memOrders struct {
	state    *memState
	onLocked func(*memState)
}

func copyOrder(o *entity.Order) *entity.Order {
	data, err := json.Marshal(o)
	if err != nil {
		panic(err)
	}
	out := new(entity.Order)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

func (r *memOrders) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	o, ok := r.state.Orders[id]
	if !ok {
		return nil, entity.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (r *memOrders) FindByIDForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	order, err := r.FindByID(ctx, id)
	if err == nil && r.onLocked != nil {
		r.onLocked(r.state)
	}
	return order, err
}

func (r *memOrders) FindByNumber(ctx context.Context, number string) (*entity.Order, error) {
	for _, o := range r.state.Orders {
		if o.Number == number {
			return copyOrder(o), nil
		}
	}
	return nil, entity.ErrOrderNotFound
}

func (r *memOrders) Create(ctx context.Context, order *entity.Order) error {
	if _, exists := r.state.Orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	r.state.Orders[order.ID] = copyOrder(order)
	return nil
}

func (r *memOrders) UpdateStatus(ctx context.Context, order *entity.Order, from entity.OrderStatus) error {
	stored, ok := r.state.Orders[order.ID]
	if !ok {
		return entity.ErrOrderNotFound
	}
	if stored.Status != from {
		return fmt.Errorf("%w: order %s is no longer %s", entity.ErrInvalidStatusTransition, order.ID, from)
	}
	stored.Status = order.Status
	stored.CancelledAt = order.CancelledAt
	stored.CancellationReason = order.CancellationReason
	return nil
}

func (r *memOrders) AppendEvent(ctx context.Context, orderID string, event entity.OrderEvent) error {
	stored, ok := r.state.Orders[orderID]
	if !ok {
		return entity.ErrOrderNotFound
	}
	stored.Events = append(stored.Events, event)
	return nil
}

func (r *memOrders) RecentByOwner(ctx context.Context, owner entity.CartOwner, limit int) ([]entity.Order, error) {
	var out []entity.Order
	for _, o := range r.state.Orders {
		if o.Owner.Key() == owner.Key() {
			out = append(out, *copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	events []entity.Event
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, event entity.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) eventTypes() []string {
	var out []string
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// fixture bundles the fakes and seeds catalog data.
type fixture struct {
	state *memState
	uow   *memUow
	pub   *recordingPublisher
}

func newFixture() *fixture {
	state := newMemState()
	return &fixture{
		state: state,
		uow:   &memUow{state: state},
		pub:   &recordingPublisher{},
	}
}

func (f *fixture) addProduct(id, name string, active bool) {
	f.state.Products[id] = &entity.Product{ID: id, Name: name, IsActive: active}
}

func (f *fixture) addVariant(id, productID, name, sku, price string, stock int, active bool) {
	f.state.Variants[id] = &entity.ProductVariant{
		ID:            id,
		ProductID:     productID,
		Name:          name,
		SKU:           sku,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      active,
	}
}

func (f *fixture) stock(t *testing.T, variantID string) int {
	t.Helper()
	v, ok := f.state.Variants[variantID]
	require.True(t, ok, "variant %s not seeded", variantID)
	return v.StockQuantity
}

func (f *fixture) putCart(t *testing.T, owner entity.CartOwner, items ...entity.CartItem) *entity.Cart {
	t.Helper()
	cart, err := entity.NewCart(owner)
	require.NoError(t, err)
	cart.Items = items
	f.state.Carts[cart.ID] = cart
	return cart
}

func (f *fixture) putOrder(t *testing.T, owner entity.CartOwner, items ...entity.OrderItem) *entity.Order {
	t.Helper()
	order, err := entity.NewOrder(owner, "jan@example.com", "", entity.Address{
		Line1:      "12 Cooling Lane",
		City:       "Rotterdam",
		PostalCode: "3011 AB",
		Country:    "NL",
	}, "standard", items, decimal.Zero, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	f.state.Orders[order.ID] = order
	return order
}

func (f *fixture) storedOrder(t *testing.T, id string) *entity.Order {
	t.Helper()
	o, ok := f.state.Orders[id]
	require.True(t, ok, "order %s not stored", id)
	return o
}

func (f *fixture) cartByOwner(owner entity.CartOwner) *entity.Cart {
	for _, c := range f.state.Carts {
		if c.Owner.Key() == owner.Key() {
			return c
		}
	}
	return nil
}

func cartItem(productID, variantID string, quantity int, price string) entity.CartItem {
	return entity.CartItem{
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
		UnitPrice: decimal.RequireFromString(price),
	}
}

func orderItem(productID, variantID, productName string, quantity int, price string) entity.OrderItem {
	return entity.OrderItem{
		ProductID:   productID,
		VariantID:   variantID,
		ProductName: productName,
		VariantName: "default",
		SKU:         variantID + "-sku",
		Quantity:    quantity,
		UnitPrice:   decimal.RequireFromString(price),
	}
}
