package reporting

import (
	"fmt"
	"io"
	"strconv"

	"github.com/Rhymond/go-money"
	"github.com/olekukonko/tablewriter"
)

var tableHeader = []string{
	"#", "Template", "Score", "Growth 24h", "Growth 7d", "Growth 30d",
	"Avg/day 7d", "Avg/day 30d", "Active Δ 7d", "Active Δ 30d",
}

// RenderTable writes the leaderboard as an aligned text table.
func RenderTable(w io.Writer, r *Report) error {
	if r.Earnings != nil {
		if _, err := fmt.Fprintf(w, "Lifetime earnings: %s | Available: %s | Templates 30d: %s\n\n",
			FormatCents(r.Earnings.LifetimeEarnings),
			FormatCents(r.Earnings.AvailableBalance),
			FormatCents(r.Earnings.TemplateEarnings30d)); err != nil {
			return err
		}
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(tableHeader)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, row := range r.Rows {
		table.Append([]string{
			strconv.Itoa(row.Rank),
			templateLabel(row),
			fmt.Sprintf("%.2f", row.ProfitabilityScore),
			FormatCents(row.RevenueGrowth24h),
			FormatCents(row.RevenueGrowth7d),
			FormatCents(row.RevenueGrowth30d),
			FormatCents(row.AvgDailyRevenue7d),
			FormatCents(row.AvgDailyRevenue30d),
			strconv.FormatInt(row.ActiveChange7d, 10),
			strconv.FormatInt(row.ActiveChange30d, 10),
		})
	}
	table.Render()
	return nil
}

// FormatCents renders a USD minor-unit amount, e.g. 123456 as "$1,234.56".
func FormatCents(cents int64) string {
	return money.New(cents, money.USD).Display()
}

func templateLabel(row LeaderboardRow) string {
	if row.TemplateName == "" {
		return row.TemplateID
	}
	return row.TemplateName
}
