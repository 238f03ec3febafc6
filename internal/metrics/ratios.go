package metrics

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// RetentionRate returns active/total as a percentage rounded to 2 decimals.
// Returns 0 when total <= 0. The result is clamped to [0, 100].
func RetentionRate(total, active int64) float64 {
	if total <= 0 {
		return 0
	}
	r := percent(active, total)
	if r.IsNegative() {
		return 0
	}
	if r.GreaterThan(hundred) {
		return 100
	}
	return r.InexactFloat64()
}

// RevenuePerActive returns floor(totalPayout / active).
// Returns 0 when active <= 0.
func RevenuePerActive(totalPayout, active int64) int64 {
	if active <= 0 {
		return 0
	}
	q := totalPayout / active
	if totalPayout%active != 0 && totalPayout < 0 {
		q-- // Go truncates toward zero
	}
	return q
}

// GrowthMomentum returns recent/active as a percentage rounded to 2 decimals.
// Returns 0 when active <= 0. Never negative.
func GrowthMomentum(recent, active int64) float64 {
	if active <= 0 {
		return 0
	}
	r := percent(recent, active)
	if r.IsNegative() {
		return 0
	}
	return r.InexactFloat64()
}

// percent computes num/den*100 with half-away-from-zero rounding to 2 places.
// den must be non-zero.
func percent(num, den int64) decimal.Decimal {
	return decimal.NewFromInt(num).Mul(hundred).DivRound(decimal.NewFromInt(den), 2)
}
