package domain

import "time"

// DerivedMetrics holds windowed growth signals and the composite score
// for one template at one calculation timestamp.
// Corresponds to template_metrics_derived table.
type DerivedMetrics struct {
	ID           int64
	CalculatedAt time.Time
	TemplateID   string
	TemplateName string

	RevenueGrowth24h int64
	RevenueGrowth7d  int64
	RevenueGrowth30d int64

	ActiveProjectsChange24h int64
	ActiveProjectsChange7d  int64
	ActiveProjectsChange30d int64

	AvgDailyRevenue7d  int64
	AvgDailyRevenue30d int64

	ProfitabilityScore float64

	// Normalization maxima in effect when the score was computed.
	NormMaxTotal     int64
	NormMaxGrowth30d int64
}

// RankField names a derived column usable for top-N reads.
type RankField string

// Supported rank fields.
const (
	RankByProfitabilityScore RankField = "profitability_score"
	RankByRevenueGrowth7d    RankField = "revenue_growth_7d"
	RankByRevenueGrowth30d   RankField = "revenue_growth_30d"
	RankByAvgDailyRevenue30d RankField = "avg_daily_revenue_30d"
)

// Valid reports whether f is a supported rank field.
func (f RankField) Valid() bool {
	switch f {
	case RankByProfitabilityScore, RankByRevenueGrowth7d, RankByRevenueGrowth30d, RankByAvgDailyRevenue30d:
		return true
	}
	return false
}

// Value returns the numeric value of field f on m.
func (m *DerivedMetrics) Value(f RankField) float64 {
	switch f {
	case RankByRevenueGrowth7d:
		return float64(m.RevenueGrowth7d)
	case RankByRevenueGrowth30d:
		return float64(m.RevenueGrowth30d)
	case RankByAvgDailyRevenue30d:
		return float64(m.AvgDailyRevenue30d)
	default:
		return m.ProfitabilityScore
	}
}
