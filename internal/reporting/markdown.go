package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Template Leaderboard\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if !r.CalculatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Calculated: %s | Ranked by: %s\n\n", r.CalculatedAt.UTC().Format(time.RFC3339), r.RankedBy))
	}

	// Earnings
	if e := r.Earnings; e != nil {
		sb.WriteString("## Earnings\n\n")
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Lifetime Earnings | %s |\n", FormatCents(e.LifetimeEarnings)))
		sb.WriteString(fmt.Sprintf("| Available Balance | %s |\n", FormatCents(e.AvailableBalance)))
		sb.WriteString(fmt.Sprintf("| Template Earnings (30d) | %s |\n", FormatCents(e.TemplateEarnings30d)))
		sb.WriteString(fmt.Sprintf("| Collected | %s |\n", e.CollectedAt.Format(time.RFC3339)))
		sb.WriteString("\n")
	}

	// Leaderboard
	sb.WriteString("## Templates\n\n")
	if len(r.Rows) == 0 {
		sb.WriteString("No derived metrics available.\n")
		return sb.String()
	}

	sb.WriteString("| # | Template | Score | Growth 7d | Growth 30d | Avg/day 30d | Active Δ 30d |\n")
	sb.WriteString("|---|----------|-------|-----------|------------|-------------|--------------|\n")
	for _, row := range r.Rows {
		sb.WriteString(fmt.Sprintf("| %d | %s | %.2f | %s | %s | %s | %d |\n",
			row.Rank,
			templateLabel(row),
			row.ProfitabilityScore,
			FormatCents(row.RevenueGrowth7d),
			FormatCents(row.RevenueGrowth30d),
			FormatCents(row.AvgDailyRevenue30d),
			row.ActiveChange30d,
		))
	}

	return sb.String()
}
