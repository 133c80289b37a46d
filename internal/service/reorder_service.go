package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/climastore/backend/internal/entity"
	"github.com/climastore/backend/internal/metrics"
	"github.com/climastore/backend/internal/repository"
)

// ReorderService replays a past order into the requester's cart, adding as
// much as is currently fulfillable and reporting what could not be.
type ReorderService struct {
	uow     repository.UnitOfWork
	cache   CartCache
	metrics *metrics.WorkflowMetrics
}

func NewReorderService(uow repository.UnitOfWork, cache CartCache, workflowMetrics *metrics.WorkflowMetrics) *ReorderService {
	return &ReorderService{uow: uow, cache: cache, metrics: workflowMetrics}
}

// ReorderResult is the structured partial-success report: the updated cart,
// counts, and a human-readable reason per line that was skipped or clamped.
type ReorderResult struct {
	Cart           *entity.Cart `json:"cart"`
	ItemsAdded     int          `json:"items_added"`
	ItemsSkipped   int          `json:"items_skipped"`
	SkippedReasons []string     `json:"skipped_reasons,omitempty"`
}

// Reorder re-validates each line of the order against the current catalog
// and stock, independently per line: a failure on one item never aborts the
// others. Only the order-level preconditions (not found, no items, access)
// abort entirely.
func (s *ReorderService) Reorder(ctx context.Context, orderID string, identity Identity) (result *ReorderResult, err error) {
	defer func() { s.metrics.ObserveReorder(err) }()

	owner, err := identity.Owner()
	if err != nil {
		return nil, err
	}

	slog.Info("Service: Reordering", "order_id", orderID, "owner", owner.Key())

	err = s.uow.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		order, err := repos.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !identity.CanAccess(order.Owner) {
			return entity.ErrAccessDenied
		}
		if len(order.Items) == 0 {
			return entity.ErrNoItemsToReorder
		}

		cart, err := repos.Carts().FindByOwnerForUpdate(ctx, owner)
		if errors.Is(err, entity.ErrCartNotFound) {
			cart, err = entity.NewCart(owner)
		}
		if err != nil {
			return err
		}

		result = &ReorderResult{Cart: cart}
		for _, item := range order.Items {
			s.reorderItem(ctx, repos, cart, item, result)
		}

		return repos.Carts().Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, owner)
	}
	s.metrics.AddSkips(result.ItemsSkipped)

	slog.Info("Service: Reorder finished", "order_id", orderID,
		"items_added", result.ItemsAdded, "items_skipped", result.ItemsSkipped)
	return result, nil
}

// reorderItem restores one order line into the cart, recording a skip
// reason when the line cannot be fully restored.
func (s *ReorderService) reorderItem(ctx context.Context, repos repository.Repositories,
	cart *entity.Cart, item entity.OrderItem, result *ReorderResult) {

	skip := func(reason string) {
		result.ItemsSkipped++
		result.SkippedReasons = append(result.SkippedReasons, reason)
	}

	product, err := repos.Catalog().ProductByID(ctx, item.ProductID)
	if err != nil || !product.IsActive {
		skip(fmt.Sprintf("%s is no longer available", item.ProductName))
		return
	}

	variant := s.pickVariant(ctx, repos, item, product.ID)
	if variant == nil {
		skip(fmt.Sprintf("%s has no available variant", product.Name))
		return
	}

	// The stock ceiling bounds the cart line as a whole, counting any
	// quantity already in the cart for this variant.
	already := 0
	if existing, ok := cart.Item(variant.ID); ok {
		already = existing.Quantity
	}
	allowed := variant.StockQuantity - already
	if allowed <= 0 {
		skip(fmt.Sprintf("%s is out of stock (max quantity available: %d)", product.Name, variant.StockQuantity))
		return
	}

	// A clamped line is a partial success, not a skip: it is still added,
	// only the reason is recorded.
	quantity := item.Quantity
	if quantity > allowed {
		quantity = allowed
		result.SkippedReasons = append(result.SkippedReasons,
			fmt.Sprintf("%s: limited stock, added %d of %d requested", product.Name, quantity, item.Quantity))
	}

	if err := cart.AddItem(product.ID, variant.ID, quantity, variant.Price); err != nil {
		skip(fmt.Sprintf("%s could not be added: %v", product.Name, err))
		return
	}
	result.ItemsAdded++
}

// pickVariant prefers the originally ordered variant when it is still
// active; otherwise it falls back to any other active variant of the same
// product. Returns nil when none is active.
func (s *ReorderService) pickVariant(ctx context.Context, repos repository.Repositories,
	item entity.OrderItem, productID string) *entity.ProductVariant {

	variant, err := repos.Catalog().VariantByID(ctx, item.VariantID)
	if err == nil && variant.IsActive {
		return variant
	}

	variants, err := repos.Catalog().VariantsByProduct(ctx, productID)
	if err != nil {
		return nil
	}
	for i := range variants {
		if variants[i].IsActive {
			return &variants[i]
		}
	}
	return nil
}
