// Package commission prices the transaction cost of a fill.
package commission

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/wonny/equitysim/internal/strategyconfig"
)

// Model computes the commission charged for trading size shares at price.
// Implementations must be pure: same inputs, same cost.
type Model interface {
	Cost(size, price float64) decimal.Decimal
}

// Fixed charges a flat rate per share, regardless of price
type Fixed struct {
	Rate decimal.Decimal
}

// NewFixed creates a per-share commission scheme
func NewFixed(rate float64) (*Fixed, error) {
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, strategyconfig.ValidationError{Field: "costs.commission_rate", Message: "must be a finite value >= 0"}
	}
	return &Fixed{Rate: decimal.NewFromFloat(rate)}, nil
}

// Cost returns |size| * rate
func (f *Fixed) Cost(size, _ float64) decimal.Decimal {
	return decimal.NewFromFloat(math.Abs(size)).Mul(f.Rate)
}

// Free charges nothing
type Free struct{}

// Cost always returns zero
func (Free) Cost(_, _ float64) decimal.Decimal {
	return decimal.Zero
}
