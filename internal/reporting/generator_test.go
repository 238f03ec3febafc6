package reporting

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/storage"
	"railway-template-metrics/internal/storage/memory"
)

var (
	calcAt      = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	generatedAt = time.Date(2025, 4, 1, 13, 0, 0, 0, time.UTC)
)

func setupTestData(t *testing.T) (*memory.DerivedMetricsStore, *memory.EarningsStore) {
	ctx := context.Background()

	derivedStore := memory.NewDerivedMetricsStore()
	earningsStore := memory.NewEarningsStore()

	records := []*domain.DerivedMetrics{
		{CalculatedAt: calcAt, TemplateID: "tpl-a", TemplateName: "Postgres", ProfitabilityScore: 95.5, RevenueGrowth7d: 50000, RevenueGrowth30d: 100000, AvgDailyRevenue30d: 3333, ActiveProjectsChange30d: 4},
		{CalculatedAt: calcAt, TemplateID: "tpl-b", TemplateName: "Redis", ProfitabilityScore: 49, RevenueGrowth7d: 1200, RevenueGrowth30d: 2500, AvgDailyRevenue30d: 83},
		{CalculatedAt: calcAt, TemplateID: "tpl-c", ProfitabilityScore: 61.25, RevenueGrowth7d: -300},
	}
	require.NoError(t, derivedStore.Upsert(ctx, records))

	require.NoError(t, earningsStore.Insert(ctx, &domain.EarningsSnapshot{
		CollectedAt: calcAt,
		EarningsRecord: domain.EarningsRecord{
			LifetimeEarnings:    12345678,
			AvailableBalance:    50000,
			TemplateEarnings30d: 98765,
		},
	}))

	return derivedStore, earningsStore
}

func newTestGenerator(t *testing.T) *Generator {
	derivedStore, earningsStore := setupTestData(t)
	return NewGenerator(derivedStore, earningsStore).WithClock(func() time.Time { return generatedAt })
}

func TestGenerator_Top(t *testing.T) {
	g := newTestGenerator(t)

	r, err := g.Top(context.Background(), domain.RankByProfitabilityScore, 2)
	require.NoError(t, err)

	assert.Equal(t, generatedAt, r.GeneratedAt)
	assert.True(t, calcAt.Equal(r.CalculatedAt))
	assert.Equal(t, "profitability_score", r.RankedBy)
	require.Len(t, r.Rows, 2)
	assert.Equal(t, "tpl-a", r.Rows[0].TemplateID)
	assert.Equal(t, 1, r.Rows[0].Rank)
	assert.Equal(t, "tpl-c", r.Rows[1].TemplateID)
	assert.Equal(t, 2, r.Rows[1].Rank)

	require.NotNil(t, r.Earnings)
	assert.Equal(t, int64(12345678), r.Earnings.LifetimeEarnings)
}

func TestGenerator_TopRejectsUnknownField(t *testing.T) {
	g := newTestGenerator(t)

	_, err := g.Top(context.Background(), domain.RankField("health"), 5)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestGenerator_LatestWithoutEarnings(t *testing.T) {
	derivedStore, _ := setupTestData(t)
	g := NewGenerator(derivedStore, memory.NewEarningsStore())

	r, err := g.Latest(context.Background())
	require.NoError(t, err)

	require.Len(t, r.Rows, 3)
	assert.Equal(t, "tpl-a", r.Rows[0].TemplateID)
	assert.Equal(t, "tpl-c", r.Rows[2].TemplateID)
	assert.Nil(t, r.Earnings)
}

func TestRenderTable(t *testing.T) {
	g := newTestGenerator(t)
	r, err := g.Top(context.Background(), domain.RankByRevenueGrowth7d, 3)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "Lifetime earnings: $123,456.78")
	assert.Contains(t, out, "Postgres")
	assert.Contains(t, out, "tpl-c", "unnamed templates fall back to their id")
	assert.Contains(t, out, "$500.00")
	assert.Contains(t, out, "-$3.00")
	assert.Less(t, strings.Index(out, "Postgres"), strings.Index(out, "Redis"))
}

func TestRenderCSV(t *testing.T) {
	g := newTestGenerator(t)
	r, err := g.Latest(context.Background())
	require.NoError(t, err)

	out, err := RenderCSV(r.Rows)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "rank,template_id,template_name,calculated_at,profitability_score"))

	var parsed []LeaderboardRow
	require.NoError(t, gocsv.UnmarshalString(out, &parsed))
	require.Len(t, parsed, 3)
	assert.Equal(t, int64(100000), parsed[0].RevenueGrowth30d)
	assert.Equal(t, 95.5, parsed[0].ProfitabilityScore)
}

func TestRenderCSV_Empty(t *testing.T) {
	out, err := RenderCSV(nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "rank,template_id"))
}

func TestRenderMarkdown(t *testing.T) {
	g := newTestGenerator(t)
	r, err := g.Top(context.Background(), domain.RankByProfitabilityScore, 10)
	require.NoError(t, err)

	md := RenderMarkdown(r)
	assert.Contains(t, md, "# Template Leaderboard")
	assert.Contains(t, md, "Generated: 2025-04-01T13:00:00Z")
	assert.Contains(t, md, "| Lifetime Earnings | $123,456.78 |")
	assert.Contains(t, md, "| 1 | Postgres | 95.50 | $500.00 | $1,000.00 | $33.33 | 4 |")

	empty := RenderMarkdown(&Report{GeneratedAt: generatedAt})
	assert.Contains(t, empty, "No derived metrics available.")
}
