package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Stock is not tracked here but on the
// individual variants, which are the purchasable units.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url"`
	IsActive    bool   `json:"is_active"`
}

// ProductVariant is a specific purchasable configuration of a product
// (e.g. capacity or size). It owns the stock ledger entry for itself.
type ProductVariant struct {
	ID            string          `json:"id"`
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	IsActive      bool            `json:"is_active"`
}

// AdjustStock applies a debit (negative delta) or credit (positive delta)
// to the variant's stock. Any adjustment that would drive the quantity
// below zero is rejected without mutating the variant.
func (v *ProductVariant) AdjustStock(delta int) error {
	next := v.StockQuantity + delta
	if next < 0 {
		return fmt.Errorf("%w: variant %s has %d in stock, cannot adjust by %d",
			ErrInsufficientStock, v.ID, v.StockQuantity, delta)
	}
	v.StockQuantity = next
	return nil
}

// InStock reports whether the variant can satisfy the requested quantity.
func (v *ProductVariant) InStock(quantity int) bool {
	return v.StockQuantity >= quantity
}
