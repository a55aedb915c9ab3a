package orders

import (
	"trading_backend/models"
	"trading_backend/services/marketdata"

	"github.com/shopspring/decimal"
)

// ExecutionPolicy decides whether an order fills at the current quote.
// The fill rule is pluggable; reconciliation only depends on this interface.
type ExecutionPolicy interface {
	ShouldFill(order *models.Order, quote *marketdata.Quote) bool
}

// LimitPricePolicy is the default execution rule: orders without a
// requested price execute at whatever the market shows; buy limits execute
// once the price drops to the requested level (plus tolerance), sell limits
// once it rises to it.
type LimitPricePolicy struct {
	// Tolerance widens the acceptable band as a fraction of the requested
	// price, e.g. 0.005 accepts fills within 0.5%.
	Tolerance decimal.Decimal
}

// NewLimitPricePolicy returns the default policy with the given tolerance.
func NewLimitPricePolicy(tolerance decimal.Decimal) *LimitPricePolicy {
	return &LimitPricePolicy{Tolerance: tolerance}
}

// ShouldFill implements ExecutionPolicy.
func (p *LimitPricePolicy) ShouldFill(order *models.Order, quote *marketdata.Quote) bool {
	if order.RequestedPrice == nil {
		return true
	}

	requested := *order.RequestedPrice
	band := requested.Mul(p.Tolerance)

	switch order.Side {
	case models.OrderSideBuy:
		return quote.Current.LessThanOrEqual(requested.Add(band))
	case models.OrderSideSell:
		return quote.Current.GreaterThanOrEqual(requested.Sub(band))
	default:
		return false
	}
}
