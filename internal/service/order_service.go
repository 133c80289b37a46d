package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/climastore/backend/internal/entity"
	"github.com/climastore/backend/internal/messaging"
	"github.com/climastore/backend/internal/metrics"
	"github.com/climastore/backend/internal/repository"
)

// OrderService owns the order lifecycle after checkout: cancellation with
// stock restoration, payment confirmation, fulfilment progression and reads.
type OrderService struct {
	uow       repository.UnitOfWork
	publisher messaging.Publisher
	metrics   *metrics.WorkflowMetrics
}

func NewOrderService(uow repository.UnitOfWork, publisher messaging.Publisher, workflowMetrics *metrics.WorkflowMetrics) *OrderService {
	return &OrderService{uow: uow, publisher: publisher, metrics: workflowMetrics}
}

// Cancel cancels a pending or paid order and credits stock back for every
// item. The status guard makes a second cancel fail with
// entity.ErrOrderCannotBeCancelled, so the credit can never run twice.
func (s *OrderService) Cancel(ctx context.Context, orderID string, identity Identity, reason string) (order *entity.Order, err error) {
	defer func() { s.metrics.ObserveCancellation(err) }()

	slog.Info("Service: Cancelling order", "order_id", orderID)

	err = s.uow.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		// Locked read: a racing cancel waits here, then re-reads the
		// cancelled status and fails the guard below.
		order, err = repos.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !identity.CanAccess(order.Owner) {
			return entity.ErrAccessDenied
		}

		from := order.Status
		event, err := order.Cancel(reason, time.Now())
		if err != nil {
			return err
		}
		if err := repos.Orders().UpdateStatus(ctx, order, from); err != nil {
			return err
		}
		if err := repos.Orders().AppendEvent(ctx, order.ID, event); err != nil {
			return err
		}

		// Credit stock back per item. If a variant has since been removed
		// from the catalog the credit is skipped: the order record stays
		// authoritative regardless of later catalog changes.
		for _, item := range order.Items {
			err := repos.Catalog().AdjustStock(ctx, item.VariantID, item.Quantity)
			if errors.Is(err, entity.ErrVariantNotFound) {
				slog.Warn("Skipping stock credit for removed variant",
					"order_id", order.ID, "variant_id", item.VariantID, "quantity", item.Quantity)
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entity.OrderCancelled{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Reason:      reason,
		CancelledAt: *order.CancelledAt,
	})

	slog.Info("Service: Order cancelled", "order_id", order.ID, "number", order.Number)
	return order, nil
}

// MarkPaid records a payment confirmation, moving the order from pending to
// paid through the guarded state machine.
func (s *OrderService) MarkPaid(ctx context.Context, orderID string) (*entity.Order, error) {
	return s.advance(ctx, orderID, entity.OrderStatusPaid)
}

// Advance moves an order to the next fulfilment status (processing,
// shipped, delivered). Admin only.
func (s *OrderService) Advance(ctx context.Context, orderID string, identity Identity, next entity.OrderStatus) (*entity.Order, error) {
	if !identity.IsAdmin {
		return nil, entity.ErrAccessDenied
	}
	return s.advance(ctx, orderID, next)
}

func (s *OrderService) advance(ctx context.Context, orderID string, next entity.OrderStatus) (*entity.Order, error) {
	var order *entity.Order
	var from entity.OrderStatus

	err := s.uow.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		order, err = repos.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		from = order.Status

		event, err := order.TransitionTo(next, time.Now())
		if err != nil {
			return err
		}
		if err := repos.Orders().UpdateStatus(ctx, order, from); err != nil {
			return err
		}
		return repos.Orders().AppendEvent(ctx, order.ID, event)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entity.OrderStatusChanged{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		From:        from,
		To:          next,
		ChangedAt:   time.Now().UTC(),
	})

	slog.Info("Service: Order status changed", "order_id", order.ID, "from", from, "to", next)
	return order, nil
}

// HandlePaymentCaptured consumes the payment gateway's confirmation event.
// An order that is no longer pending (already paid, or cancelled in the
// meantime) is left alone.
func (s *OrderService) HandlePaymentCaptured(ctx context.Context, event *entity.PaymentCaptured) error {
	slog.Info("Service: Payment captured", "order_id", event.OrderID, "amount", event.Amount)

	_, err := s.MarkPaid(ctx, event.OrderID)
	if errors.Is(err, entity.ErrInvalidStatusTransition) {
		slog.Warn("Ignoring payment confirmation for non-pending order", "order_id", event.OrderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark order %s paid: %w", event.OrderID, err)
	}
	return nil
}

// Get returns an order if the requester owns it or is an admin.
func (s *OrderService) Get(ctx context.Context, orderID string, identity Identity) (*entity.Order, error) {
	var order *entity.Order
	err := s.uow.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		order, err = repos.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !identity.CanAccess(order.Owner) {
			return entity.ErrAccessDenied
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetByNumber returns an order by its public order number.
func (s *OrderService) GetByNumber(ctx context.Context, number string, identity Identity) (*entity.Order, error) {
	var order *entity.Order
	err := s.uow.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		order, err = repos.Orders().FindByNumber(ctx, number)
		if err != nil {
			return err
		}
		if !identity.CanAccess(order.Owner) {
			return entity.ErrAccessDenied
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Recent returns the requester's latest orders.
func (s *OrderService) Recent(ctx context.Context, identity Identity, limit int) ([]entity.Order, error) {
	owner, err := identity.Owner()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	var orders []entity.Order
	err = s.uow.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		orders, err = repos.Orders().RecentByOwner(ctx, owner, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *OrderService) publish(ctx context.Context, event entity.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		slog.Error("Failed to publish event", "event", event.EventType(), "err", err)
	}
}
