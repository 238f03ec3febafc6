package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rhymond/go-money"
	log "github.com/sirupsen/logrus"

	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/metrics"
	"railway-template-metrics/internal/storage"
)

// BatchResult is the outcome of one template batch write.
type BatchResult struct {
	Submitted int // templates received from the source
	Inserted  int // new snapshot rows
	Ignored   int // rows that already existed or repeated an id within the batch
}

// Writer turns raw source records into snapshots and stores them.
// Snapshots are written once per collection timestamp; repeating a write is a no-op.
type Writer struct {
	earningsStore storage.EarningsStore
	snapshotStore storage.TemplateSnapshotStore
	logger        log.FieldLogger
}

// WriterOptions contains configuration for creating a Writer.
type WriterOptions struct {
	EarningsStore storage.EarningsStore
	SnapshotStore storage.TemplateSnapshotStore
	Logger        log.FieldLogger // Default: standard logrus logger
}

// NewWriter creates a new snapshot writer.
func NewWriter(opts WriterOptions) *Writer {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	return &Writer{
		earningsStore: opts.EarningsStore,
		snapshotStore: opts.SnapshotStore,
		logger:        logger,
	}
}

// WriteEarnings stores one earnings snapshot at collectedAt.
// A second write for the same timestamp fails with storage.ErrDuplicateKey.
func (w *Writer) WriteEarnings(ctx context.Context, record *domain.EarningsRecord, collectedAt time.Time) (*domain.EarningsSnapshot, error) {
	if record == nil {
		return nil, fmt.Errorf("write earnings: %w", storage.ErrInvalidInput)
	}

	snap := &domain.EarningsSnapshot{
		CollectedAt:    collectedAt.UTC(),
		EarningsRecord: *record,
	}
	if err := w.earningsStore.Insert(ctx, snap); err != nil {
		return nil, fmt.Errorf("write earnings at %s: %w", snap.CollectedAt.Format(time.RFC3339), err)
	}

	w.logger.WithFields(log.Fields{
		"collected_at":      snap.CollectedAt,
		"lifetime_earnings": money.New(record.LifetimeEarnings, money.USD).Display(),
		"available_balance": money.New(record.AvailableBalance, money.USD).Display(),
	}).Debug("earnings snapshot stored")

	return snap, nil
}

// WriteTemplateBatch converts templates into snapshots at collectedAt and stores them
// in one set-oriented insert. Any template that fails validation aborts the batch
// before anything is written. An empty batch writes nothing.
func (w *Writer) WriteTemplateBatch(ctx context.Context, templates []*RawTemplate, collectedAt time.Time) (BatchResult, error) {
	res := BatchResult{Submitted: len(templates)}
	if len(templates) == 0 {
		return res, nil
	}

	snapshots, err := BuildSnapshots(templates, collectedAt)
	if err != nil {
		return BatchResult{}, err
	}

	ins, err := w.snapshotStore.InsertBatch(ctx, snapshots)
	if err != nil {
		return BatchResult{}, fmt.Errorf("write template batch at %s: %w", collectedAt.UTC().Format(time.RFC3339), err)
	}

	res.Inserted = ins.Inserted
	res.Ignored = res.Submitted - res.Inserted

	w.logger.WithFields(log.Fields{
		"collected_at": collectedAt.UTC(),
		"submitted":    res.Submitted,
		"inserted":     res.Inserted,
		"ignored":      res.Ignored,
	}).Info("template snapshots stored")

	return res, nil
}

// BuildSnapshots validates templates and applies the per-snapshot ratios.
// When an id repeats, the first occurrence is kept.
func BuildSnapshots(templates []*RawTemplate, collectedAt time.Time) ([]*domain.TemplateSnapshot, error) {
	ts := collectedAt.UTC()
	seen := make(map[string]struct{}, len(templates))
	snapshots := make([]*domain.TemplateSnapshot, 0, len(templates))

	for _, t := range templates {
		if t == nil {
			return nil, &ValidationError{Err: errors.New("nil template")}
		}
		if t.ID == "" {
			return nil, &ValidationError{Err: errors.New("missing template id")}
		}

		health := t.Health
		if t.RawHealth != nil {
			h, err := domain.ParseHealth(t.RawHealth)
			if err != nil {
				return nil, &ValidationError{TemplateID: t.ID, Err: err}
			}
			health = h
		}

		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}

		snapshots = append(snapshots, newSnapshot(t, health, ts))
	}

	return snapshots, nil
}

func newSnapshot(t *RawTemplate, health int, collectedAt time.Time) *domain.TemplateSnapshot {
	return &domain.TemplateSnapshot{
		CollectedAt: collectedAt,
		TemplateID:  t.ID,
		Code:        t.Code,
		Name:        t.Name,
		Description: t.Description,
		Category:    t.Category,
		Image:       t.Image,
		Status:      t.Status,
		IsApproved:  t.IsApproved,
		IsVerified:  t.IsVerified,
		Tags:        append([]string(nil), t.Tags...),
		Languages:   append([]string(nil), t.Languages...),

		Health:         health,
		Projects:       t.Projects,
		ActiveProjects: t.ActiveProjects,
		RecentProjects: t.RecentProjects,
		TotalPayout:    t.TotalPayout,

		RetentionRate:    metrics.RetentionRate(t.Projects, t.ActiveProjects),
		RevenuePerActive: metrics.RevenuePerActive(t.TotalPayout, t.ActiveProjects),
		GrowthMomentum:   metrics.GrowthMomentum(t.RecentProjects, t.ActiveProjects),
	}
}
