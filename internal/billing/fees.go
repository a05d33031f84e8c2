package billing

import "github.com/shopspring/decimal"

// PercentFeeCalculator computes a processor fee as a percentage of the base
// amount plus a fixed per-transaction charge — the standard card-processor
// fee structure (e.g. Stripe's 2.9% + $0.30).
type PercentFeeCalculator struct {
	Pct   decimal.Decimal
	Fixed decimal.Decimal
}

// NewPercentFeeCalculator builds a PercentFeeCalculator from a percentage
// (0.029 for 2.9%) and a fixed per-transaction fee.
func NewPercentFeeCalculator(pct, fixed decimal.Decimal) PercentFeeCalculator {
	return PercentFeeCalculator{Pct: pct, Fixed: fixed}
}

// Fees returns base*Pct + Fixed, rounded to the nearest cent.
func (f PercentFeeCalculator) Fees(base decimal.Decimal) decimal.Decimal {
	return base.Mul(f.Pct).Add(f.Fixed).Round(2)
}
