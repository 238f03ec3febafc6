// Package derived computes windowed growth signals and the profitability score
// for every template observed in a collection cycle.
package derived

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/lookup"
	"railway-template-metrics/internal/metrics"
	"railway-template-metrics/internal/storage"
)

// ErrNoSnapshots is reported when the target cycle has no template snapshots.
var ErrNoSnapshots = errors.New("no template snapshots at calculation time")

// Result is the outcome of one calculation.
// A failed calculation leaves Records empty and sets Err; it is never fatal.
type Result struct {
	CalculatedAt time.Time
	Records      []*domain.DerivedMetrics
	Maxima       metrics.Maxima
	MirrorErr    error // set when the mirror store rejected the records
	Err          error
}

// Calculator derives metrics for one cycle from durable snapshot history.
// It keeps no state between runs.
type Calculator struct {
	snapshots storage.TemplateSnapshotStore
	derived   storage.DerivedMetricsStore
	mirror    storage.DerivedMetricsStore
	logger    log.FieldLogger
}

// Options contains configuration for creating a Calculator.
type Options struct {
	SnapshotStore storage.TemplateSnapshotStore
	DerivedStore  storage.DerivedMetricsStore

	// Mirror receives a copy of every written record, e.g. the ClickHouse
	// analytics store. Optional; mirror failures are logged only.
	Mirror storage.DerivedMetricsStore

	Logger log.FieldLogger // Default: standard logrus logger
}

// NewCalculator creates a new Calculator.
func NewCalculator(opts Options) *Calculator {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	return &Calculator{
		snapshots: opts.SnapshotStore,
		derived:   opts.DerivedStore,
		mirror:    opts.Mirror,
		logger:    logger,
	}
}

// Run computes and stores derived metrics for every template snapshot collected
// at calculatedAt. Errors are logged and returned in Result.Err.
func (c *Calculator) Run(ctx context.Context, calculatedAt time.Time) (res Result) {
	calculatedAt = calculatedAt.UTC()
	res.CalculatedAt = calculatedAt
	logger := c.logger.WithField("calculated_at", calculatedAt)

	defer func() {
		if r := recover(); r != nil {
			res.Records = nil
			res.Err = fmt.Errorf("derived calculation panicked: %v", r)
		}
		if res.Err != nil {
			logger.WithError(res.Err).Error("derived metrics calculation failed")
		}
	}()

	records, maxima, err := c.calculate(ctx, calculatedAt)
	if err != nil {
		res.Err = err
		return res
	}
	res.Maxima = maxima

	if err := c.derived.Upsert(ctx, records); err != nil {
		res.Err = fmt.Errorf("store derived metrics: %w", err)
		return res
	}
	res.Records = records

	if c.mirror != nil {
		if err := c.mirror.Upsert(ctx, records); err != nil {
			res.MirrorErr = err
			logger.WithError(err).Warn("mirror derived metrics failed")
		}
	}

	logger.WithFields(log.Fields{
		"templates":      len(records),
		"max_total":      maxima.MaxTotal,
		"max_growth_30d": maxima.MaxGrowth30d,
	}).Info("derived metrics stored")

	return res
}

// Compute derives the records for calculatedAt without writing them.
// Maxima are bounded by calculatedAt, so computing a past cycle again yields
// the records that cycle stored.
func (c *Calculator) Compute(ctx context.Context, calculatedAt time.Time) ([]*domain.DerivedMetrics, metrics.Maxima, error) {
	return c.calculate(ctx, calculatedAt.UTC())
}

func (c *Calculator) calculate(ctx context.Context, at time.Time) ([]*domain.DerivedMetrics, metrics.Maxima, error) {
	current, err := c.snapshots.GetByCollectedAt(ctx, at)
	if err != nil {
		return nil, metrics.Maxima{}, fmt.Errorf("load current snapshots: %w", err)
	}
	if len(current) == 0 {
		return nil, metrics.Maxima{}, ErrNoSnapshots
	}

	longest := domain.Windows[len(domain.Windows)-1]
	window, err := c.snapshots.GetByTimeRange(ctx, longest.Boundary(at), at)
	if err != nil {
		return nil, metrics.Maxima{}, fmt.Errorf("load snapshot history: %w", err)
	}
	history := groupByTemplate(window)

	maxTotal, err := c.snapshots.MaxTotalPayout(ctx, at)
	if err != nil {
		return nil, metrics.Maxima{}, fmt.Errorf("load max total payout: %w", err)
	}
	maxGrowth, err := c.derived.MaxRevenueGrowth30d(ctx, at)
	if err != nil {
		return nil, metrics.Maxima{}, fmt.Errorf("load max 30d growth: %w", err)
	}
	maxima := metrics.Maxima{MaxTotal: maxTotal, MaxGrowth30d: maxGrowth}

	records := make([]*domain.DerivedMetrics, 0, len(current))
	inputs := make([]metrics.ScoreInputs, 0, len(current))
	for _, snap := range current {
		rec := &domain.DerivedMetrics{
			CalculatedAt: at,
			TemplateID:   snap.TemplateID,
			TemplateName: snap.Name,
		}
		applyDeltas(rec, snap, history[snap.TemplateID])

		in := metrics.ScoreInputs{
			TotalPayout:   snap.TotalPayout,
			Growth30d:     rec.RevenueGrowth30d,
			RetentionRate: snap.RetentionRate,
			Health:        snap.Health,
		}
		maxima = maxima.Observe(in)

		records = append(records, rec)
		inputs = append(inputs, in)
	}

	// Scores need the maxima of the whole batch.
	for i, rec := range records {
		rec.ProfitabilityScore = metrics.ProfitabilityScore(inputs[i], maxima)
		rec.NormMaxTotal = maxima.MaxTotal
		rec.NormMaxGrowth30d = maxima.MaxGrowth30d
	}

	return records, maxima, nil
}

func applyDeltas(rec *domain.DerivedMetrics, current *domain.TemplateSnapshot, history []*domain.TemplateSnapshot) {
	for _, w := range domain.Windows {
		d := lookup.Compare(current, w, history)
		switch w {
		case domain.Window24h:
			rec.RevenueGrowth24h = d.RevenueGrowth
			rec.ActiveProjectsChange24h = d.ActiveChange
		case domain.Window7d:
			rec.RevenueGrowth7d = d.RevenueGrowth
			rec.ActiveProjectsChange7d = d.ActiveChange
			rec.AvgDailyRevenue7d = d.AvgDailyRate
		case domain.Window30d:
			rec.RevenueGrowth30d = d.RevenueGrowth
			rec.ActiveProjectsChange30d = d.ActiveChange
			rec.AvgDailyRevenue30d = d.AvgDailyRate
		}
	}
}

// groupByTemplate splits snapshots by template, keeping collected_at order.
func groupByTemplate(snaps []*domain.TemplateSnapshot) map[string][]*domain.TemplateSnapshot {
	out := make(map[string][]*domain.TemplateSnapshot)
	for _, s := range snaps {
		out[s.TemplateID] = append(out[s.TemplateID], s)
	}
	return out
}
