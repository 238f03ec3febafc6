// Package orchestrator runs collection cycles.
// A cycle fetches earnings and templates, stores them as snapshots and then
// derives metrics from the stored history.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"railway-template-metrics/internal/derived"
	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/ingestion"
	"railway-template-metrics/internal/observability"
)

// Orchestrator coordinates one collection cycle.
// Flow: fetch → earnings snapshot → template snapshots → derived metrics
type Orchestrator struct {
	earningsSource ingestion.EarningsSource
	templateSource ingestion.TemplateSource
	writer         *ingestion.Writer
	calculator     *derived.Calculator
	metrics        *observability.Metrics
	logger         log.FieldLogger
}

// Options for creating Orchestrator.
type Options struct {
	EarningsSource ingestion.EarningsSource
	TemplateSource ingestion.TemplateSource
	Writer         *ingestion.Writer
	Calculator     *derived.Calculator

	Metrics *observability.Metrics // Optional
	Logger  log.FieldLogger        // Default: standard logrus logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	return &Orchestrator{
		earningsSource: opts.EarningsSource,
		templateSource: opts.TemplateSource,
		writer:         opts.Writer,
		calculator:     opts.Calculator,
		metrics:        opts.Metrics,
		logger:         logger,
	}
}

// CycleResult contains results from one cycle.
type CycleResult struct {
	CycleID     string
	CollectedAt time.Time
	Earnings    *domain.EarningsSnapshot
	Batch       ingestion.BatchResult
	Derived     derived.Result

	// DerivedErr is set when the calculation failed. The cycle still counts as
	// successful because snapshots are durable and the next cycle recomputes.
	DerivedErr error
	Duration   time.Duration
}

// Run executes one cycle for collectedAt.
// Fetch and storage failures abort the cycle; derived metrics failures do not.
func (o *Orchestrator) Run(ctx context.Context, collectedAt time.Time) (*CycleResult, error) {
	start := time.Now()
	result := &CycleResult{
		CycleID:     uuid.NewString(),
		CollectedAt: collectedAt.UTC(),
	}
	logger := o.logger.WithFields(log.Fields{
		"cycle_id":     result.CycleID,
		"collected_at": result.CollectedAt,
	})

	err := o.run(ctx, result, logger)
	result.Duration = time.Since(start)

	if err != nil {
		o.metrics.RecordCycle(observability.StatusFailed, result.Duration, time.Now())
		logger.WithError(err).Error("cycle failed")
		return result, err
	}

	o.metrics.RecordCycle(observability.StatusSuccess, result.Duration, time.Now())
	logger.WithFields(log.Fields{
		"submitted": result.Batch.Submitted,
		"inserted":  result.Batch.Inserted,
		"ignored":   result.Batch.Ignored,
		"derived":   len(result.Derived.Records),
		"duration":  result.Duration,
	}).Info("cycle completed")
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, result *CycleResult, logger log.FieldLogger) error {
	if o.earningsSource == nil || o.templateSource == nil || o.writer == nil {
		return errors.New("orchestrator: sources and writer are required")
	}

	// Phase 1: fetch
	fetchStart := time.Now()
	earnings, err := o.earningsSource.FetchEarnings(ctx)
	o.metrics.RecordFetch("earnings", time.Since(fetchStart))
	if err != nil {
		return fmt.Errorf("fetch earnings: %w", err)
	}

	fetchStart = time.Now()
	templates, err := o.templateSource.FetchTemplates(ctx)
	o.metrics.RecordFetch("templates", time.Since(fetchStart))
	if err != nil {
		return fmt.Errorf("fetch templates: %w", err)
	}
	logger.WithField("templates", len(templates)).Debug("upstream data fetched")

	// Phase 2: snapshots
	result.Earnings, err = o.writer.WriteEarnings(ctx, earnings, result.CollectedAt)
	if err != nil {
		return err
	}

	result.Batch, err = o.writer.WriteTemplateBatch(ctx, templates, result.CollectedAt)
	if err != nil {
		return err
	}
	o.metrics.RecordSnapshots(result.Batch.Inserted, result.Batch.Ignored)

	// Phase 3: derived metrics, only once the batch is persisted
	if result.Batch.Submitted == 0 {
		logger.Info("no templates collected, skipping derived metrics")
		return nil
	}
	if o.calculator == nil {
		return nil
	}

	result.Derived = o.calculator.Run(ctx, result.CollectedAt)
	result.DerivedErr = result.Derived.Err
	o.metrics.RecordDerived(len(result.Derived.Records), result.Derived.Err, result.Derived.MirrorErr)

	return nil
}
