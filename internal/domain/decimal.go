package domain

import "github.com/shopspring/decimal"

// BalanceTolerance is the relative difference below which two amounts are
// treated as equal when reconciling wallet balances against computed token
// usage (0.001%). The wallet absorbs the residue by zeroing out.
var BalanceTolerance = decimal.New(1, -5)

// ApproxEqual reports whether a and b differ by less than BalanceTolerance,
// relative to the larger magnitude. Exact equality always passes, including
// both zero.
func ApproxEqual(a, b decimal.Decimal) bool {
	if a.Equal(b) {
		return true
	}
	diff := a.Sub(b).Abs()
	scale := decimal.Max(a.Abs(), b.Abs())
	if scale.IsZero() {
		return diff.IsZero()
	}
	return diff.Div(scale).LessThan(BalanceTolerance)
}
