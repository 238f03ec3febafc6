package storage

import (
	"context"
	"time"

	"railway-template-metrics/internal/domain"
)

// InsertResult reports how a conflict-ignoring batch insert was applied.
type InsertResult struct {
	Inserted int // rows written
	Ignored  int // rows skipped because (collected_at, template_id) already existed
}

// EarningsStore provides access to earnings_snapshots storage.
type EarningsStore interface {
	// Insert adds a new snapshot. Returns ErrDuplicateKey if collected_at exists.
	Insert(ctx context.Context, e *domain.EarningsSnapshot) error

	// GetLatest retrieves the most recent snapshot. Returns ErrNotFound if empty.
	GetLatest(ctx context.Context) (*domain.EarningsSnapshot, error)

	// GetByTimeRange retrieves snapshots collected within [start, end] (inclusive), ordered ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.EarningsSnapshot, error)
}

// TemplateSnapshotStore provides access to template_snapshots storage.
type TemplateSnapshotStore interface {
	// InsertBatch adds snapshots in one set-oriented write. Rows whose
	// (collected_at, template_id) already exists are skipped, not rejected.
	InsertBatch(ctx context.Context, snapshots []*domain.TemplateSnapshot) (InsertResult, error)

	// GetByCollectedAt retrieves all snapshots of one cycle, ordered by template_id.
	GetByCollectedAt(ctx context.Context, collectedAt time.Time) ([]*domain.TemplateSnapshot, error)

	// GetByTimeRange retrieves snapshots of all templates within [start, end] (inclusive),
	// ordered by template_id, collected_at ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.TemplateSnapshot, error)

	// GetHistory retrieves all snapshots for a template, ordered by collected_at ASC.
	GetHistory(ctx context.Context, templateID string) ([]*domain.TemplateSnapshot, error)

	// GetLatest retrieves the most recent snapshot of every template.
	GetLatest(ctx context.Context) ([]*domain.TemplateSnapshot, error)

	// MaxTotalPayout returns the largest total_payout collected at or before upTo,
	// floored at 0.
	MaxTotalPayout(ctx context.Context, upTo time.Time) (int64, error)
}

// DerivedMetricsStore provides access to template_metrics_derived storage.
type DerivedMetricsStore interface {
	// Upsert writes records, replacing any existing row with the same
	// (calculated_at, template_id).
	Upsert(ctx context.Context, records []*domain.DerivedMetrics) error

	// GetByCalculatedAt retrieves all records of one calculation, ordered by template_id.
	GetByCalculatedAt(ctx context.Context, calculatedAt time.Time) ([]*domain.DerivedMetrics, error)

	// GetByTemplateID retrieves all records for a template, ordered by calculated_at ASC.
	GetByTemplateID(ctx context.Context, templateID string) ([]*domain.DerivedMetrics, error)

	// GetLatest retrieves the record with the latest calculated_at for every template.
	GetLatest(ctx context.Context) ([]*domain.DerivedMetrics, error)

	// TopN retrieves up to n latest-per-template records ordered by field DESC.
	// Returns ErrInvalidInput for unsupported fields or n <= 0.
	TopN(ctx context.Context, field domain.RankField, n int) ([]*domain.DerivedMetrics, error)

	// MaxRevenueGrowth30d returns the largest revenue_growth_30d calculated strictly
	// before the given time, floored at 0.
	MaxRevenueGrowth30d(ctx context.Context, before time.Time) (int64, error)
}
