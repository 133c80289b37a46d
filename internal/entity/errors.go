package entity

import "errors"

// Domain errors, grouped by the failure class they represent. Workflows wrap
// these with fmt.Errorf("...: %w", err) to attach the specific reason, so
// callers can both match with errors.Is and render the message as-is.
var (
	// Validation errors — rejected before any domain logic runs.
	ErrInvalidInput = errors.New("invalid input")
	ErrNoIdentity   = errors.New("no user or guest session identity provided")

	// Authorization errors.
	ErrUnauthorized = errors.New("authentication required")
	ErrAccessDenied = errors.New("access denied")

	// State errors — the operation is illegal given current entity state.
	ErrCartNotFound             = errors.New("cart not found")
	ErrCartEmpty                = errors.New("cart is empty")
	ErrOrderNotFound            = errors.New("order not found")
	ErrOrderCannotBeCancelled   = errors.New("order can no longer be cancelled")
	ErrNoItemsToReorder         = errors.New("order has no items to reorder")
	ErrInvalidStatusTransition  = errors.New("invalid order status transition")
	ErrCartItemNotFound         = errors.New("cart item not found")
	ErrUnknownShippingMethod    = errors.New("unknown shipping method")

	// Availability errors — the catalog/stock snapshot no longer supports
	// the request.
	ErrProductNotFound    = errors.New("product not found")
	ErrVariantNotFound    = errors.New("variant not found")
	ErrProductUnavailable = errors.New("product is not available")
	ErrVariantUnavailable = errors.New("variant is not available")
	ErrInsufficientStock  = errors.New("insufficient stock")
)
