package reporting

import "time"

// Report is a leaderboard of the latest derived metrics per template.
type Report struct {
	GeneratedAt time.Time

	// CalculatedAt is the newest calculation timestamp among Rows.
	CalculatedAt time.Time
	RankedBy     string

	Rows []LeaderboardRow

	// Earnings is the latest earnings snapshot, nil when none is stored.
	Earnings *EarningsSummary
}

// LeaderboardRow represents one template in the leaderboard.
// Money columns are minor units (cents).
type LeaderboardRow struct {
	Rank               int       `csv:"rank"`
	TemplateID         string    `csv:"template_id"`
	TemplateName       string    `csv:"template_name"`
	CalculatedAt       time.Time `csv:"calculated_at"`
	ProfitabilityScore float64   `csv:"profitability_score"`
	RevenueGrowth24h   int64     `csv:"revenue_growth_24h"`
	RevenueGrowth7d    int64     `csv:"revenue_growth_7d"`
	RevenueGrowth30d   int64     `csv:"revenue_growth_30d"`
	AvgDailyRevenue7d  int64     `csv:"avg_daily_revenue_7d"`
	AvgDailyRevenue30d int64     `csv:"avg_daily_revenue_30d"`
	ActiveChange7d     int64     `csv:"active_projects_change_7d"`
	ActiveChange30d    int64     `csv:"active_projects_change_30d"`
}

// EarningsSummary is the account-level earnings shown above the leaderboard.
type EarningsSummary struct {
	CollectedAt         time.Time
	LifetimeEarnings    int64
	AvailableBalance    int64
	TemplateEarnings30d int64
}
