package metrics

import "github.com/shopspring/decimal"

// Composite score weights.
const (
	WeightTotal     = 0.40
	WeightGrowth30d = 0.30
	WeightRetention = 0.20
	WeightHealth    = 0.10
)

// ScoreInputs are the four per-template components of the profitability score.
type ScoreInputs struct {
	TotalPayout   int64
	Growth30d     int64
	RetentionRate float64
	Health        int
}

// Maxima are the normalization denominators in effect for one scoring pass.
type Maxima struct {
	MaxTotal     int64
	MaxGrowth30d int64
}

// Observe returns m widened to include the components of in.
func (m Maxima) Observe(in ScoreInputs) Maxima {
	if in.TotalPayout > m.MaxTotal {
		m.MaxTotal = in.TotalPayout
	}
	if in.Growth30d > m.MaxGrowth30d {
		m.MaxGrowth30d = in.Growth30d
	}
	return m
}

// Normalize scales x to a 0..100 range against max.
// Returns 0 when max <= 0.
func Normalize(x, max int64) float64 {
	if max <= 0 {
		return 0
	}
	return float64(x) / float64(max) * 100
}

// ProfitabilityScore computes the weighted composite ranking score,
// rounded to 2 decimals.
//
//	score = 0.40*normalize(total, maxTotal) + 0.30*normalize(growth30d, maxGrowth30d)
//	      + 0.20*retention + 0.10*health
func ProfitabilityScore(in ScoreInputs, m Maxima) float64 {
	score := WeightTotal*Normalize(in.TotalPayout, m.MaxTotal) +
		WeightGrowth30d*Normalize(in.Growth30d, m.MaxGrowth30d) +
		WeightRetention*in.RetentionRate +
		WeightHealth*float64(in.Health)
	return decimal.NewFromFloat(score).Round(2).InexactFloat64()
}
