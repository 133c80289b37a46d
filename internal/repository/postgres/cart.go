package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/climastore/backend/internal/entity"
)

type cartRepository struct {
	q querier
}

// ownerColumns splits a CartOwner into the two nullable columns used by the
// carts and orders tables; the schema CHECK enforces the XOR the type
// already guarantees.
func ownerColumns(owner entity.CartOwner) (userID, guestSessionID sql.NullString) {
	if id, ok := owner.UserID(); ok {
		userID = sql.NullString{String: id, Valid: true}
	}
	if id, ok := owner.GuestSessionID(); ok {
		guestSessionID = sql.NullString{String: id, Valid: true}
	}
	return userID, guestSessionID
}

func ownerFromColumns(userID, guestSessionID sql.NullString) entity.CartOwner {
	if userID.Valid {
		return entity.UserOwner(userID.String)
	}
	if guestSessionID.Valid {
		return entity.GuestOwner(guestSessionID.String)
	}
	return entity.CartOwner{}
}

func (r *cartRepository) FindByOwner(ctx context.Context, owner entity.CartOwner) (*entity.Cart, error) {
	return r.findByOwner(ctx, owner, "")
}

// FindByOwnerForUpdate locks the cart row so a concurrent workflow on the
// same cart waits and then re-reads whatever this transaction left behind
// (a second checkout sees the emptied cart).
func (r *cartRepository) FindByOwnerForUpdate(ctx context.Context, owner entity.CartOwner) (*entity.Cart, error) {
	return r.findByOwner(ctx, owner, " FOR UPDATE")
}

func (r *cartRepository) findByOwner(ctx context.Context, owner entity.CartOwner, locking string) (*entity.Cart, error) {
	var row *sql.Row
	if id, ok := owner.UserID(); ok {
		row = r.q.QueryRowContext(ctx,
			"SELECT id, user_id, guest_session_id, created_at, updated_at FROM carts WHERE user_id = $1"+locking, id)
	} else if id, ok := owner.GuestSessionID(); ok {
		row = r.q.QueryRowContext(ctx,
			"SELECT id, user_id, guest_session_id, created_at, updated_at FROM carts WHERE guest_session_id = $1"+locking, id)
	} else {
		return nil, entity.ErrNoIdentity
	}
	return r.scanCart(ctx, row)
}

func (r *cartRepository) FindByID(ctx context.Context, id string) (*entity.Cart, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT id, user_id, guest_session_id, created_at, updated_at FROM carts WHERE id = $1", id)
	return r.scanCart(ctx, row)
}

func (r *cartRepository) scanCart(ctx context.Context, row *sql.Row) (*entity.Cart, error) {
	var c entity.Cart
	var userID, guestSessionID sql.NullString
	err := row.Scan(&c.ID, &userID, &guestSessionID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, entity.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cart: %w", err)
	}
	c.Owner = ownerFromColumns(userID, guestSessionID)

	rows, err := r.q.QueryContext(ctx,
		"SELECT product_id, variant_id, quantity, unit_price FROM cart_items WHERE cart_id = $1 ORDER BY id", c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it entity.CartItem
		if err := rows.Scan(&it.ProductID, &it.VariantID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		c.Items = append(c.Items, it)
	}
	return &c, rows.Err()
}

func (r *cartRepository) Save(ctx context.Context, cart *entity.Cart) error {
	userID, guestSessionID := ownerColumns(cart.Owner)
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, guest_session_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		cart.ID, userID, guestSessionID, cart.CreatedAt, cart.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cart %s: %w", cart.ID, err)
	}

	if _, err := r.q.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cart.ID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}
	for _, it := range cart.Items {
		_, err := r.q.ExecContext(ctx,
			"INSERT INTO cart_items (cart_id, product_id, variant_id, quantity, unit_price) VALUES ($1, $2, $3, $4, $5)",
			cart.ID, it.ProductID, it.VariantID, it.Quantity, it.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("failed to insert cart item: %w", err)
		}
	}
	return nil
}

func (r *cartRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, "DELETE FROM carts WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete cart %s: %w", id, err)
	}
	return nil
}
