package service

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/climastore/backend/internal/entity"
)

// ShippingRates is the rate table collaborator: shipping method name to
// flat cost.
type ShippingRates struct {
	rates map[string]decimal.Decimal
}

func NewShippingRates(rates map[string]decimal.Decimal) ShippingRates {
	copied := make(map[string]decimal.Decimal, len(rates))
	for method, cost := range rates {
		copied[method] = cost
	}
	return ShippingRates{rates: copied}
}

// DefaultShippingRates returns the built-in rate table.
func DefaultShippingRates() ShippingRates {
	return NewShippingRates(map[string]decimal.Decimal{
		"standard":  decimal.Zero,
		"express":   decimal.RequireFromString("14.90"),
		"overnight": decimal.RequireFromString("29.90"),
	})
}

// Cost looks up the cost for a shipping method.
func (r ShippingRates) Cost(method string) (decimal.Decimal, error) {
	cost, ok := r.rates[method]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", entity.ErrUnknownShippingMethod, method)
	}
	return cost, nil
}

// Methods lists the available shipping methods.
func (r ShippingRates) Methods() []string {
	methods := make([]string, 0, len(r.rates))
	for method := range r.rates {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}
