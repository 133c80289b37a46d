package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/climastore/backend/internal/entity"
)

type orderRepository struct {
	q querier
}

const orderColumns = `id, number, user_id, guest_session_id, customer_email, customer_phone,
	ship_line1, ship_line2, ship_city, ship_region, ship_postal_code, ship_country,
	shipping_method, subtotal, shipping_cost, tax_amount, discount_amount, total,
	status, cancelled_at, cancellation_reason, created_at`

func (r *orderRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	return r.scanOrder(ctx, row)
}

// FindByIDForUpdate locks the order row so concurrent transitions on the
// same order serialize; the waiting transaction re-reads the committed
// status and its own guard check then fails cleanly.
func (r *orderRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
	return r.scanOrder(ctx, row)
}

func (r *orderRepository) FindByNumber(ctx context.Context, number string) (*entity.Order, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE number = $1", number)
	return r.scanOrder(ctx, row)
}

func (r *orderRepository) scanOrder(ctx context.Context, row *sql.Row) (*entity.Order, error) {
	var o entity.Order
	var userID, guestSessionID sql.NullString
	var cancelledAt sql.NullTime
	var status string
	err := row.Scan(
		&o.ID, &o.Number, &userID, &guestSessionID, &o.CustomerEmail, &o.CustomerPhone,
		&o.ShippingAddress.Line1, &o.ShippingAddress.Line2, &o.ShippingAddress.City,
		&o.ShippingAddress.Region, &o.ShippingAddress.PostalCode, &o.ShippingAddress.Country,
		&o.ShippingMethod, &o.Subtotal, &o.ShippingCost, &o.TaxAmount, &o.DiscountAmount, &o.Total,
		&status, &cancelledAt, &o.CancellationReason, &o.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	o.Owner = ownerFromColumns(userID, guestSessionID)
	o.Status = entity.OrderStatus(status)
	if cancelledAt.Valid {
		t := cancelledAt.Time
		o.CancelledAt = &t
	}

	if err := r.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	if err := r.loadEvents(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) loadItems(ctx context.Context, o *entity.Order) error {
	rows, err := r.q.QueryContext(ctx,
		"SELECT product_id, variant_id, product_name, variant_name, sku, quantity, unit_price FROM order_items WHERE order_id = $1 ORDER BY id",
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it entity.OrderItem
		if err := rows.Scan(&it.ProductID, &it.VariantID, &it.ProductName, &it.VariantName, &it.SKU, &it.Quantity, &it.UnitPrice); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (r *orderRepository) loadEvents(ctx context.Context, o *entity.Order) error {
	rows, err := r.q.QueryContext(ctx,
		"SELECT status, created_at FROM order_events WHERE order_id = $1 ORDER BY id", o.ID)
	if err != nil {
		return fmt.Errorf("failed to query order events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev entity.OrderEvent
		var status string
		if err := rows.Scan(&status, &ev.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan order event: %w", err)
		}
		ev.Status = entity.OrderStatus(status)
		o.Events = append(o.Events, ev)
	}
	return rows.Err()
}

func (r *orderRepository) Create(ctx context.Context, order *entity.Order) error {
	userID, guestSessionID := ownerColumns(order.Owner)
	var cancelledAt sql.NullTime
	if order.CancelledAt != nil {
		cancelledAt = sql.NullTime{Time: *order.CancelledAt, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		order.ID, order.Number, userID, guestSessionID, order.CustomerEmail, order.CustomerPhone,
		order.ShippingAddress.Line1, order.ShippingAddress.Line2, order.ShippingAddress.City,
		order.ShippingAddress.Region, order.ShippingAddress.PostalCode, order.ShippingAddress.Country,
		order.ShippingMethod, order.Subtotal, order.ShippingCost, order.TaxAmount, order.DiscountAmount, order.Total,
		string(order.Status), cancelledAt, order.CancellationReason, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", order.ID, err)
	}

	for _, it := range order.Items {
		_, err := r.q.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, variant_id, product_name, variant_name, sku, quantity, unit_price) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
			order.ID, it.ProductID, it.VariantID, it.ProductName, it.VariantName, it.SKU, it.Quantity, it.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	for _, ev := range order.Events {
		if err := r.AppendEvent(ctx, order.ID, ev); err != nil {
			return err
		}
	}
	return nil
}

// UpdateStatus applies a transition with the starting status in the WHERE
// clause, so a write based on a stale read matches no row instead of
// overwriting a concurrent transition.
func (r *orderRepository) UpdateStatus(ctx context.Context, order *entity.Order, from entity.OrderStatus) error {
	var cancelledAt sql.NullTime
	if order.CancelledAt != nil {
		cancelledAt = sql.NullTime{Time: *order.CancelledAt, Valid: true}
	}
	res, err := r.q.ExecContext(ctx,
		"UPDATE orders SET status = $1, cancelled_at = $2, cancellation_reason = $3 WHERE id = $4 AND status = $5",
		string(order.Status), cancelledAt, order.CancellationReason, order.ID, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", order.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := r.q.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)", order.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check order %s: %w", order.ID, err)
		}
		if !exists {
			return entity.ErrOrderNotFound
		}
		return fmt.Errorf("%w: order %s is no longer %s", entity.ErrInvalidStatusTransition, order.ID, from)
	}
	return nil
}

func (r *orderRepository) AppendEvent(ctx context.Context, orderID string, event entity.OrderEvent) error {
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO order_events (order_id, status, created_at) VALUES ($1, $2, $3)",
		orderID, string(event.Status), event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append order event: %w", err)
	}
	return nil
}

func (r *orderRepository) RecentByOwner(ctx context.Context, owner entity.CartOwner, limit int) ([]entity.Order, error) {
	userID, guestSessionID := ownerColumns(owner)
	rows, err := r.q.QueryContext(ctx,
		"SELECT id FROM orders WHERE (user_id = $1 AND $1 IS NOT NULL) OR (guest_session_id = $2 AND $2 IS NOT NULL) ORDER BY created_at DESC LIMIT $3",
		userID, guestSessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orders := make([]entity.Order, 0, len(ids))
	for _, id := range ids {
		o, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}
