package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/climastore/backend/internal/entity"
)

type catalogRepository struct {
	q querier
}

func (r *catalogRepository) ProductByID(ctx context.Context, id string) (*entity.Product, error) {
	var p entity.Product
	err := r.q.QueryRowContext(ctx,
		"SELECT id, name, description, category, image_url, is_active FROM products WHERE id = $1",
		id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.ImageURL, &p.IsActive)
	if err == sql.ErrNoRows {
		return nil, entity.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product %s: %w", id, err)
	}
	return &p, nil
}

const variantColumns = "id, product_id, name, sku, price, stock_quantity, is_active"

func (r *catalogRepository) VariantByID(ctx context.Context, id string) (*entity.ProductVariant, error) {
	return r.scanVariantRow(r.q.QueryRowContext(ctx,
		"SELECT "+variantColumns+" FROM product_variants WHERE id = $1", id))
}

func (r *catalogRepository) VariantForUpdate(ctx context.Context, id string) (*entity.ProductVariant, error) {
	return r.scanVariantRow(r.q.QueryRowContext(ctx,
		"SELECT "+variantColumns+" FROM product_variants WHERE id = $1 FOR UPDATE", id))
}

func (r *catalogRepository) scanVariantRow(row *sql.Row) (*entity.ProductVariant, error) {
	var v entity.ProductVariant
	err := row.Scan(&v.ID, &v.ProductID, &v.Name, &v.SKU, &v.Price, &v.StockQuantity, &v.IsActive)
	if err == sql.ErrNoRows {
		return nil, entity.ErrVariantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan variant: %w", err)
	}
	return &v, nil
}

func (r *catalogRepository) VariantsByProduct(ctx context.Context, productID string) ([]entity.ProductVariant, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+variantColumns+" FROM product_variants WHERE product_id = $1 ORDER BY name", productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants for product %s: %w", productID, err)
	}
	defer rows.Close()

	var variants []entity.ProductVariant
	for rows.Next() {
		var v entity.ProductVariant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.SKU, &v.Price, &v.StockQuantity, &v.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// AdjustStock applies the delta with the guard in the statement itself, so
// a racing debit can never take the quantity below zero even if the earlier
// read was stale.
func (r *catalogRepository) AdjustStock(ctx context.Context, variantID string, delta int) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE product_variants SET stock_quantity = stock_quantity + $1 WHERE id = $2 AND stock_quantity + $1 >= 0",
		delta, variantID,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust stock for variant %s: %w", variantID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// Either the variant is gone or the guard blocked a negative stock.
		var exists bool
		if err := r.q.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM product_variants WHERE id = $1)", variantID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check variant %s: %w", variantID, err)
		}
		if !exists {
			return entity.ErrVariantNotFound
		}
		return fmt.Errorf("%w: variant %s cannot be adjusted by %d", entity.ErrInsufficientStock, variantID, delta)
	}
	return nil
}
