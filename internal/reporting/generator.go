package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/storage"
)

// Generator produces leaderboard reports from stored derived metrics.
type Generator struct {
	derivedStore  storage.DerivedMetricsStore
	earningsStore storage.EarningsStore // optional
	now           func() time.Time      // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. earningsStore may be nil.
func NewGenerator(derivedStore storage.DerivedMetricsStore, earningsStore storage.EarningsStore) *Generator {
	return &Generator{
		derivedStore:  derivedStore,
		earningsStore: earningsStore,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Top produces a report of the n best templates by field.
func (g *Generator) Top(ctx context.Context, field domain.RankField, n int) (*Report, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("unsupported rank field %q: %w", field, storage.ErrInvalidInput)
	}

	records, err := g.derivedStore.TopN(ctx, field, n)
	if err != nil {
		return nil, fmt.Errorf("load top %d by %s: %w", n, field, err)
	}
	return g.build(ctx, string(field), records)
}

// Latest produces a report of every template's latest record, ordered by template_id.
func (g *Generator) Latest(ctx context.Context) (*Report, error) {
	records, err := g.derivedStore.GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest derived metrics: %w", err)
	}
	return g.build(ctx, "template_id", records)
}

func (g *Generator) build(ctx context.Context, rankedBy string, records []*domain.DerivedMetrics) (*Report, error) {
	r := &Report{
		GeneratedAt: g.now(),
		RankedBy:    rankedBy,
		Rows:        make([]LeaderboardRow, 0, len(records)),
	}

	for i, m := range records {
		if m.CalculatedAt.After(r.CalculatedAt) {
			r.CalculatedAt = m.CalculatedAt
		}
		r.Rows = append(r.Rows, LeaderboardRow{
			Rank:               i + 1,
			TemplateID:         m.TemplateID,
			TemplateName:       m.TemplateName,
			CalculatedAt:       m.CalculatedAt.UTC(),
			ProfitabilityScore: m.ProfitabilityScore,
			RevenueGrowth24h:   m.RevenueGrowth24h,
			RevenueGrowth7d:    m.RevenueGrowth7d,
			RevenueGrowth30d:   m.RevenueGrowth30d,
			AvgDailyRevenue7d:  m.AvgDailyRevenue7d,
			AvgDailyRevenue30d: m.AvgDailyRevenue30d,
			ActiveChange7d:     m.ActiveProjectsChange7d,
			ActiveChange30d:    m.ActiveProjectsChange30d,
		})
	}

	if g.earningsStore == nil {
		return r, nil
	}
	e, err := g.earningsStore.GetLatest(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load latest earnings: %w", err)
	default:
		r.Earnings = &EarningsSummary{
			CollectedAt:         e.CollectedAt.UTC(),
			LifetimeEarnings:    e.LifetimeEarnings,
			AvailableBalance:    e.AvailableBalance,
			TemplateEarnings30d: e.TemplateEarnings30d,
		}
	}
	return r, nil
}
