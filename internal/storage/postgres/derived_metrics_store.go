package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/storage"
)

// DerivedMetricsStore implements storage.DerivedMetricsStore using PostgreSQL.
type DerivedMetricsStore struct {
	pool *Pool
}

// NewDerivedMetricsStore creates a new DerivedMetricsStore.
func NewDerivedMetricsStore(pool *Pool) *DerivedMetricsStore {
	return &DerivedMetricsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DerivedMetricsStore = (*DerivedMetricsStore)(nil)

const derivedColumns = `
	id, calculated_at, template_id, template_name,
	revenue_growth_24h, revenue_growth_7d, revenue_growth_30d,
	active_projects_change_24h, active_projects_change_7d, active_projects_change_30d,
	avg_daily_revenue_7d, avg_daily_revenue_30d,
	profitability_score, norm_max_total, norm_max_growth_30d`

// rankColumns whitelists the columns TopN may order by.
var rankColumns = map[domain.RankField]string{
	domain.RankByProfitabilityScore: "profitability_score",
	domain.RankByRevenueGrowth7d:    "revenue_growth_7d",
	domain.RankByRevenueGrowth30d:   "revenue_growth_30d",
	domain.RankByAvgDailyRevenue30d: "avg_daily_revenue_30d",
}

// Upsert writes records atomically, replacing rows with the same (calculated_at, template_id).
func (s *DerivedMetricsStore) Upsert(ctx context.Context, records []*domain.DerivedMetrics) error {
	if len(records) == 0 {
		return nil
	}

	for _, r := range records {
		if r == nil || r.TemplateID == "" || r.CalculatedAt.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO template_metrics_derived (
			calculated_at, template_id, template_name,
			revenue_growth_24h, revenue_growth_7d, revenue_growth_30d,
			active_projects_change_24h, active_projects_change_7d, active_projects_change_30d,
			avg_daily_revenue_7d, avg_daily_revenue_30d,
			profitability_score, norm_max_total, norm_max_growth_30d
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (calculated_at, template_id) DO UPDATE SET
			template_name              = EXCLUDED.template_name,
			revenue_growth_24h         = EXCLUDED.revenue_growth_24h,
			revenue_growth_7d          = EXCLUDED.revenue_growth_7d,
			revenue_growth_30d         = EXCLUDED.revenue_growth_30d,
			active_projects_change_24h = EXCLUDED.active_projects_change_24h,
			active_projects_change_7d  = EXCLUDED.active_projects_change_7d,
			active_projects_change_30d = EXCLUDED.active_projects_change_30d,
			avg_daily_revenue_7d       = EXCLUDED.avg_daily_revenue_7d,
			avg_daily_revenue_30d      = EXCLUDED.avg_daily_revenue_30d,
			profitability_score        = EXCLUDED.profitability_score,
			norm_max_total             = EXCLUDED.norm_max_total,
			norm_max_growth_30d        = EXCLUDED.norm_max_growth_30d
		RETURNING id
	`

	for _, r := range records {
		err := tx.QueryRow(ctx, query,
			r.CalculatedAt.UTC(),
			r.TemplateID,
			r.TemplateName,
			r.RevenueGrowth24h,
			r.RevenueGrowth7d,
			r.RevenueGrowth30d,
			r.ActiveProjectsChange24h,
			r.ActiveProjectsChange7d,
			r.ActiveProjectsChange30d,
			r.AvgDailyRevenue7d,
			r.AvgDailyRevenue30d,
			r.ProfitabilityScore,
			r.NormMaxTotal,
			r.NormMaxGrowth30d,
		).Scan(&r.ID)
		if err != nil {
			return fmt.Errorf("upsert derived metrics for %s: %w", r.TemplateID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByCalculatedAt retrieves all records of one calculation, ordered by template_id.
func (s *DerivedMetricsStore) GetByCalculatedAt(ctx context.Context, calculatedAt time.Time) ([]*domain.DerivedMetrics, error) {
	query := `
		SELECT ` + derivedColumns + `
		FROM template_metrics_derived
		WHERE calculated_at = $1
		ORDER BY template_id ASC
	`
	return s.query(ctx, "get derived metrics by calculated_at", query, calculatedAt.UTC())
}

// GetByTemplateID retrieves all records for a template, ordered by calculated_at ASC.
func (s *DerivedMetricsStore) GetByTemplateID(ctx context.Context, templateID string) ([]*domain.DerivedMetrics, error) {
	query := `
		SELECT ` + derivedColumns + `
		FROM template_metrics_derived
		WHERE template_id = $1
		ORDER BY calculated_at ASC
	`
	return s.query(ctx, "get derived metrics by template id", query, templateID)
}

// GetLatest retrieves the newest record per template, ordered by template_id.
func (s *DerivedMetricsStore) GetLatest(ctx context.Context) ([]*domain.DerivedMetrics, error) {
	query := `
		SELECT DISTINCT ON (template_id) ` + derivedColumns + `
		FROM template_metrics_derived
		ORDER BY template_id ASC, calculated_at DESC
	`
	return s.query(ctx, "get latest derived metrics", query)
}

// TopN retrieves up to n latest-per-template records ordered by field DESC.
func (s *DerivedMetricsStore) TopN(ctx context.Context, field domain.RankField, n int) ([]*domain.DerivedMetrics, error) {
	col, ok := rankColumns[field]
	if !ok || n <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		WITH latest AS (
			SELECT DISTINCT ON (template_id) ` + derivedColumns + `
			FROM template_metrics_derived
			ORDER BY template_id ASC, calculated_at DESC
		)
		SELECT ` + derivedColumns + `
		FROM latest
		ORDER BY ` + col + ` DESC, template_id ASC
		LIMIT $1
	`
	return s.query(ctx, "get top derived metrics", query, n)
}

// MaxRevenueGrowth30d returns the largest revenue_growth_30d calculated before the given time.
func (s *DerivedMetricsStore) MaxRevenueGrowth30d(ctx context.Context, before time.Time) (int64, error) {
	query := `
		SELECT GREATEST(COALESCE(MAX(revenue_growth_30d), 0), 0)
		FROM template_metrics_derived
		WHERE calculated_at < $1
	`

	var highest int64
	if err := s.pool.QueryRow(ctx, query, before.UTC()).Scan(&highest); err != nil {
		return 0, fmt.Errorf("get max revenue_growth_30d: %w", err)
	}
	return highest, nil
}

func (s *DerivedMetricsStore) query(ctx context.Context, op, query string, args ...any) ([]*domain.DerivedMetrics, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result, err := pgx.CollectRows(rows, scanDerived)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func scanDerived(row pgx.CollectableRow) (*domain.DerivedMetrics, error) {
	var r domain.DerivedMetrics
	err := row.Scan(
		&r.ID,
		&r.CalculatedAt,
		&r.TemplateID,
		&r.TemplateName,
		&r.RevenueGrowth24h,
		&r.RevenueGrowth7d,
		&r.RevenueGrowth30d,
		&r.ActiveProjectsChange24h,
		&r.ActiveProjectsChange7d,
		&r.ActiveProjectsChange30d,
		&r.AvgDailyRevenue7d,
		&r.AvgDailyRevenue30d,
		&r.ProfitabilityScore,
		&r.NormMaxTotal,
		&r.NormMaxGrowth30d,
	)
	if err != nil {
		return nil, err
	}
	r.CalculatedAt = r.CalculatedAt.UTC()
	return &r, nil
}
