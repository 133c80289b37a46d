package repository

import (
	"context"

	"github.com/climastore/backend/internal/entity"
)

// CatalogRepository reads the live product catalog and adjusts variant
// stock. The catalog itself is maintained elsewhere; this core only needs
// lookups and the stock ledger.
type CatalogRepository interface {
	ProductByID(ctx context.Context, id string) (*entity.Product, error)
	VariantByID(ctx context.Context, id string) (*entity.ProductVariant, error)
	// VariantForUpdate reads a variant with a row-level lock so concurrent
	// checkouts against the same variant serialize.
	VariantForUpdate(ctx context.Context, id string) (*entity.ProductVariant, error)
	VariantsByProduct(ctx context.Context, productID string) ([]entity.ProductVariant, error)
	// AdjustStock debits (negative delta) or credits (positive delta) a
	// variant's stock. A debit below zero fails with
	// entity.ErrInsufficientStock; an unknown variant with
	// entity.ErrVariantNotFound.
	AdjustStock(ctx context.Context, variantID string, delta int) error
}

// CartRepository persists carts and their lines.
type CartRepository interface {
	FindByOwner(ctx context.Context, owner entity.CartOwner) (*entity.Cart, error)
	// FindByOwnerForUpdate reads the cart with a row-level lock so a
	// concurrent workflow against the same cart serializes behind this one
	// and re-reads the cart it left behind.
	FindByOwnerForUpdate(ctx context.Context, owner entity.CartOwner) (*entity.Cart, error)
	FindByID(ctx context.Context, id string) (*entity.Cart, error)
	// Save upserts the cart row and replaces its lines with cart.Items.
	Save(ctx context.Context, cart *entity.Cart) error
	Delete(ctx context.Context, id string) error
}

// OrderRepository persists orders, their item snapshots and status events.
type OrderRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Order, error)
	// FindByIDForUpdate reads the order with a row-level lock, serializing
	// concurrent status transitions on the same order.
	FindByIDForUpdate(ctx context.Context, id string) (*entity.Order, error)
	FindByNumber(ctx context.Context, number string) (*entity.Order, error)
	// Create inserts the order, its items and any events already on it.
	Create(ctx context.Context, order *entity.Order) error
	// UpdateStatus writes the order's mutable fields (status, cancellation),
	// guarded on the status the transition started from: if another
	// transaction moved the order in the meantime the write matches no row
	// and fails with entity.ErrInvalidStatusTransition. Items are immutable
	// and never rewritten.
	UpdateStatus(ctx context.Context, order *entity.Order, from entity.OrderStatus) error
	AppendEvent(ctx context.Context, orderID string, event entity.OrderEvent) error
	RecentByOwner(ctx context.Context, owner entity.CartOwner, limit int) ([]entity.Order, error)
}

// Repositories bundles the repositories bound to one transaction.
type Repositories interface {
	Catalog() CatalogRepository
	Carts() CartRepository
	Orders() OrderRepository
}

// UnitOfWork runs fn inside a single database transaction. All reads
// establishing preconditions and all writes applying effects happen through
// the repositories passed to fn; any error rolls the whole transaction back.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
