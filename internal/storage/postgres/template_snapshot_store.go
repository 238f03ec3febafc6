package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/storage"
)

// insertChunkSize bounds rows per INSERT so bind parameters stay under the
// protocol limit of 65535.
const insertChunkSize = 1000

// TemplateSnapshotStore implements storage.TemplateSnapshotStore using PostgreSQL.
type TemplateSnapshotStore struct {
	pool *Pool
}

// NewTemplateSnapshotStore creates a new TemplateSnapshotStore.
func NewTemplateSnapshotStore(pool *Pool) *TemplateSnapshotStore {
	return &TemplateSnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TemplateSnapshotStore = (*TemplateSnapshotStore)(nil)

// snapshotInsertColumns lists insert columns with the cast applied to each placeholder.
var snapshotInsertColumns = []struct {
	name string
	cast string
}{
	{"collected_at", ""},
	{"template_id", ""},
	{"template_code", ""},
	{"template_name", ""},
	{"description", ""},
	{"category", ""},
	{"image", ""},
	{"status", ""},
	{"is_approved", ""},
	{"is_verified", ""},
	{"tags", "::jsonb"},
	{"languages", "::jsonb"},
	{"health", ""},
	{"projects", ""},
	{"active_projects", ""},
	{"recent_projects", ""},
	{"total_payout", ""},
	{"retention_rate", "::float8"},
	{"revenue_per_active", ""},
	{"growth_momentum", "::float8"},
}

const snapshotSelectColumns = `
	id, collected_at, template_id, template_code, template_name,
	description, category, image, status, is_approved, is_verified,
	tags, languages, health, projects, active_projects, recent_projects, total_payout,
	retention_rate::float8, revenue_per_active, growth_momentum::float8`

// InsertBatch writes snapshots with multi-row INSERTs inside one transaction.
// Rows whose (collected_at, template_id) already exists are counted as ignored.
func (s *TemplateSnapshotStore) InsertBatch(ctx context.Context, snapshots []*domain.TemplateSnapshot) (storage.InsertResult, error) {
	var res storage.InsertResult
	if len(snapshots) == 0 {
		return res, nil
	}

	for _, snap := range snapshots {
		if snap == nil || snap.TemplateID == "" || snap.CollectedAt.IsZero() {
			return res, storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for start := 0; start < len(snapshots); start += insertChunkSize {
		end := min(start+insertChunkSize, len(snapshots))
		inserted, err := insertSnapshotChunk(ctx, tx, snapshots[start:end])
		if err != nil {
			return storage.InsertResult{}, err
		}
		res.Inserted += inserted
	}

	if err := tx.Commit(ctx); err != nil {
		return storage.InsertResult{}, fmt.Errorf("commit tx: %w", err)
	}

	res.Ignored = len(snapshots) - res.Inserted
	return res, nil
}

func insertSnapshotChunk(ctx context.Context, tx pgx.Tx, chunk []*domain.TemplateSnapshot) (int, error) {
	names := make([]string, len(snapshotInsertColumns))
	for i, c := range snapshotInsertColumns {
		names[i] = c.name
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO template_snapshots (")
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(chunk)*len(snapshotInsertColumns))
	for i, snap := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j, c := range snapshotInsertColumns {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d%s", len(args)+j+1, c.cast)
		}
		sb.WriteByte(')')

		args = append(args,
			snap.CollectedAt.UTC(),
			snap.TemplateID,
			snap.Code,
			snap.Name,
			snap.Description,
			snap.Category,
			snap.Image,
			snap.Status,
			snap.IsApproved,
			snap.IsVerified,
			nonNil(snap.Tags),
			nonNil(snap.Languages),
			snap.Health,
			snap.Projects,
			snap.ActiveProjects,
			snap.RecentProjects,
			snap.TotalPayout,
			snap.RetentionRate,
			snap.RevenuePerActive,
			snap.GrowthMomentum,
		)
	}
	sb.WriteString(" ON CONFLICT (collected_at, template_id) DO NOTHING RETURNING id")

	rows, err := tx.Query(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("insert template snapshots: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, fmt.Errorf("insert template snapshots: %w", err)
	}
	return len(ids), nil
}

// GetByCollectedAt retrieves all snapshots of one cycle, ordered by template_id.
func (s *TemplateSnapshotStore) GetByCollectedAt(ctx context.Context, collectedAt time.Time) ([]*domain.TemplateSnapshot, error) {
	query := `
		SELECT ` + snapshotSelectColumns + `
		FROM template_snapshots
		WHERE collected_at = $1
		ORDER BY template_id ASC
	`
	return s.query(ctx, "get template snapshots by collected_at", query, collectedAt.UTC())
}

// GetByTimeRange retrieves snapshots within [start, end] (inclusive),
// ordered by template_id, collected_at ASC.
func (s *TemplateSnapshotStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.TemplateSnapshot, error) {
	query := `
		SELECT ` + snapshotSelectColumns + `
		FROM template_snapshots
		WHERE collected_at >= $1 AND collected_at <= $2
		ORDER BY template_id ASC, collected_at ASC
	`
	return s.query(ctx, "get template snapshots by time range", query, start.UTC(), end.UTC())
}

// GetHistory retrieves all snapshots for a template, ordered by collected_at ASC.
func (s *TemplateSnapshotStore) GetHistory(ctx context.Context, templateID string) ([]*domain.TemplateSnapshot, error) {
	query := `
		SELECT ` + snapshotSelectColumns + `
		FROM template_snapshots
		WHERE template_id = $1
		ORDER BY collected_at ASC
	`
	return s.query(ctx, "get template history", query, templateID)
}

// GetLatest retrieves the most recent snapshot of every template.
func (s *TemplateSnapshotStore) GetLatest(ctx context.Context) ([]*domain.TemplateSnapshot, error) {
	query := `
		SELECT DISTINCT ON (template_id) ` + snapshotSelectColumns + `
		FROM template_snapshots
		ORDER BY template_id ASC, collected_at DESC
	`
	return s.query(ctx, "get latest template snapshots", query)
}

// MaxTotalPayout returns the largest total_payout collected at or before upTo, floored at 0.
func (s *TemplateSnapshotStore) MaxTotalPayout(ctx context.Context, upTo time.Time) (int64, error) {
	query := `
		SELECT GREATEST(COALESCE(MAX(total_payout), 0), 0)
		FROM template_snapshots
		WHERE collected_at <= $1
	`

	var highest int64
	if err := s.pool.QueryRow(ctx, query, upTo.UTC()).Scan(&highest); err != nil {
		return 0, fmt.Errorf("get max total_payout: %w", err)
	}
	return highest, nil
}

func (s *TemplateSnapshotStore) query(ctx context.Context, op, query string, args ...any) ([]*domain.TemplateSnapshot, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*domain.TemplateSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		result = append(result, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return result, nil
}

func scanSnapshot(row pgx.Row) (*domain.TemplateSnapshot, error) {
	var snap domain.TemplateSnapshot
	err := row.Scan(
		&snap.ID,
		&snap.CollectedAt,
		&snap.TemplateID,
		&snap.Code,
		&snap.Name,
		&snap.Description,
		&snap.Category,
		&snap.Image,
		&snap.Status,
		&snap.IsApproved,
		&snap.IsVerified,
		&snap.Tags,
		&snap.Languages,
		&snap.Health,
		&snap.Projects,
		&snap.ActiveProjects,
		&snap.RecentProjects,
		&snap.TotalPayout,
		&snap.RetentionRate,
		&snap.RevenuePerActive,
		&snap.GrowthMomentum,
	)
	if err != nil {
		return nil, err
	}
	snap.CollectedAt = snap.CollectedAt.UTC()
	return &snap, nil
}

// nonNil keeps NOT NULL jsonb columns from receiving SQL NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
