package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/climastore/backend/internal/entity"
	"github.com/climastore/backend/internal/messaging"
	"github.com/climastore/backend/internal/metrics"
	"github.com/climastore/backend/internal/repository"
)

// CheckoutService turns a cart into an order: it validates every line
// against the live catalog and stock, snapshots the items, debits stock and
// empties the cart, all in one transaction.
type CheckoutService struct {
	uow       repository.UnitOfWork
	rates     ShippingRates
	publisher messaging.Publisher
	cache     CartCache
	metrics   *metrics.WorkflowMetrics
}

func NewCheckoutService(
	uow repository.UnitOfWork,
	rates ShippingRates,
	publisher messaging.Publisher,
	cache CartCache,
	workflowMetrics *metrics.WorkflowMetrics,
) *CheckoutService {
	return &CheckoutService{
		uow:       uow,
		rates:     rates,
		publisher: publisher,
		cache:     cache,
		metrics:   workflowMetrics,
	}
}

// CheckoutCommand carries the checkout inputs. Identity must resolve to
// exactly one of a user or a guest session.
type CheckoutCommand struct {
	Identity        Identity
	CustomerEmail   string
	CustomerPhone   string
	ShippingAddress entity.Address
	ShippingMethod  string
}

// Checkout executes the checkout workflow. Any failure aborts the whole
// transaction with no partial effect: no stock debit without its order row
// and vice versa.
func (s *CheckoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (order *entity.Order, err error) {
	defer func() { s.metrics.ObserveCheckout(err) }()

	owner, err := cmd.Identity.Owner()
	if err != nil {
		return nil, err
	}
	if cmd.CustomerEmail == "" {
		return nil, fmt.Errorf("%w: customer email is required", entity.ErrInvalidInput)
	}
	if err := cmd.ShippingAddress.Validate(); err != nil {
		return nil, err
	}
	shippingCost, err := s.rates.Cost(cmd.ShippingMethod)
	if err != nil {
		return nil, err
	}

	slog.Info("Service: Checking out cart", "owner", owner.Key(), "shipping_method", cmd.ShippingMethod)

	err = s.uow.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		// Locked read: a second checkout on the same cart waits here and
		// then observes the cart this transaction emptied.
		cart, err := repos.Carts().FindByOwnerForUpdate(ctx, owner)
		if errors.Is(err, entity.ErrCartNotFound) {
			return entity.ErrCartEmpty
		}
		if err != nil {
			return fmt.Errorf("failed to load cart: %w", err)
		}
		if cart.IsEmpty() {
			return entity.ErrCartEmpty
		}

		// Validate every line against the live catalog before mutating
		// anything. Variant reads take row locks so a racing checkout on
		// the same variant serializes behind this one.
		snapshots := make([]entity.OrderItem, 0, len(cart.Items))
		for _, item := range cart.Items {
			product, err := repos.Catalog().ProductByID(ctx, item.ProductID)
			if errors.Is(err, entity.ErrProductNotFound) {
				return fmt.Errorf("%w: product %s", entity.ErrProductUnavailable, item.ProductID)
			}
			if err != nil {
				return fmt.Errorf("failed to load product %s: %w", item.ProductID, err)
			}
			if !product.IsActive {
				return fmt.Errorf("%w: %s", entity.ErrProductUnavailable, product.Name)
			}

			variant, err := repos.Catalog().VariantForUpdate(ctx, item.VariantID)
			if errors.Is(err, entity.ErrVariantNotFound) {
				return fmt.Errorf("%w: variant %s", entity.ErrVariantUnavailable, item.VariantID)
			}
			if err != nil {
				return fmt.Errorf("failed to load variant %s: %w", item.VariantID, err)
			}
			if !variant.IsActive {
				return fmt.Errorf("%w: %s %s", entity.ErrVariantUnavailable, product.Name, variant.Name)
			}
			if !variant.InStock(item.Quantity) {
				return fmt.Errorf("%w: only %d left in stock for %q (requested %d)",
					entity.ErrInsufficientStock, variant.StockQuantity, product.Name, item.Quantity)
			}

			snapshots = append(snapshots, entity.OrderItem{
				ProductID:   product.ID,
				VariantID:   variant.ID,
				ProductName: product.Name,
				VariantName: variant.Name,
				SKU:         variant.SKU,
				Quantity:    item.Quantity,
				UnitPrice:   variant.Price,
			})
		}

		order, err = entity.NewOrder(owner, cmd.CustomerEmail, cmd.CustomerPhone,
			cmd.ShippingAddress, cmd.ShippingMethod, snapshots, shippingCost, decimal.Zero, decimal.Zero)
		if err != nil {
			return err
		}
		if err := repos.Orders().Create(ctx, order); err != nil {
			return err
		}

		for _, item := range snapshots {
			if err := repos.Catalog().AdjustStock(ctx, item.VariantID, -item.Quantity); err != nil {
				return err
			}
		}

		cart.Clear()
		return repos.Carts().Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, owner)
	}
	s.publish(ctx, entity.OrderPlaced{
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		CustomerEmail: order.CustomerEmail,
		Items:         order.Items,
		Total:         order.Total,
		PlacedAt:      time.Now().UTC(),
	})

	slog.Info("Service: Order placed", "order_id", order.ID, "number", order.Number, "total", order.Total)
	return order, nil
}

func (s *CheckoutService) publish(ctx context.Context, event entity.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		slog.Error("Failed to publish event", "event", event.EventType(), "err", err)
	}
}
