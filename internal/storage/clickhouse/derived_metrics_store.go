package clickhouse

import (
	"context"
	"fmt"
	"time"

	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/storage"
)

// DerivedMetricsStore implements storage.DerivedMetricsStore using ClickHouse.
// Rows are versioned; FINAL collapses replaced calculations on read.
type DerivedMetricsStore struct {
	conn *Conn
	now  func() time.Time
}

// NewDerivedMetricsStore creates a new DerivedMetricsStore.
func NewDerivedMetricsStore(conn *Conn) *DerivedMetricsStore {
	return &DerivedMetricsStore{conn: conn, now: time.Now}
}

// Compile-time interface check.
var _ storage.DerivedMetricsStore = (*DerivedMetricsStore)(nil)

const derivedColumns = `
	calculated_at, template_id, template_name,
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

// Upsert appends records with a fresh version, superseding earlier rows
// for the same (template_id, calculated_at).
func (s *DerivedMetricsStore) Upsert(ctx context.Context, records []*domain.DerivedMetrics) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO template_metrics_derived (`+derivedColumns+`, version)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	version := uint64(s.now().UnixNano())
	for _, r := range records {
		err = batch.Append(
			r.CalculatedAt.UTC(), r.TemplateID, r.TemplateName,
			r.RevenueGrowth24h, r.RevenueGrowth7d, r.RevenueGrowth30d,
			r.ActiveProjectsChange24h, r.ActiveProjectsChange7d, r.ActiveProjectsChange30d,
			r.AvgDailyRevenue7d, r.AvgDailyRevenue30d,
			r.ProfitabilityScore, r.NormMaxTotal, r.NormMaxGrowth30d,
			version,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByCalculatedAt retrieves all records of one calculation, ordered by template_id.
func (s *DerivedMetricsStore) GetByCalculatedAt(ctx context.Context, calculatedAt time.Time) ([]*domain.DerivedMetrics, error) {
	query := `
		SELECT ` + derivedColumns + `
		FROM template_metrics_derived FINAL
		WHERE calculated_at = ?
		ORDER BY template_id ASC
	`

	rows, err := s.conn.Query(ctx, query, calculatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("query by calculated_at: %w", err)
	}
	defer rows.Close()

	return scanDerivedMetrics(rows)
}

// GetByTemplateID retrieves all records for a template, ordered by calculated_at ASC.
func (s *DerivedMetricsStore) GetByTemplateID(ctx context.Context, templateID string) ([]*domain.DerivedMetrics, error) {
	query := `
		SELECT ` + derivedColumns + `
		FROM template_metrics_derived FINAL
		WHERE template_id = ?
		ORDER BY calculated_at ASC
	`

	rows, err := s.conn.Query(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("query by template id: %w", err)
	}
	defer rows.Close()

	return scanDerivedMetrics(rows)
}

// GetLatest retrieves the newest record per template, ordered by template_id.
func (s *DerivedMetricsStore) GetLatest(ctx context.Context) ([]*domain.DerivedMetrics, error) {
	query := `
		SELECT ` + derivedColumns + `
		FROM template_metrics_derived FINAL
		ORDER BY template_id ASC, calculated_at DESC
		LIMIT 1 BY template_id
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	defer rows.Close()

	return scanDerivedMetrics(rows)
}

// TopN retrieves up to n latest-per-template records ordered by field DESC.
func (s *DerivedMetricsStore) TopN(ctx context.Context, field domain.RankField, n int) ([]*domain.DerivedMetrics, error) {
	col, ok := rankColumns[field]
	if !ok || n <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ` + derivedColumns + `
		FROM (
			SELECT ` + derivedColumns + `
			FROM template_metrics_derived FINAL
			ORDER BY template_id ASC, calculated_at DESC
			LIMIT 1 BY template_id
		)
		ORDER BY ` + col + ` DESC, template_id ASC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, uint64(n))
	if err != nil {
		return nil, fmt.Errorf("query top %d by %s: %w", n, field, err)
	}
	defer rows.Close()

	return scanDerivedMetrics(rows)
}

// MaxRevenueGrowth30d returns the largest revenue_growth_30d calculated before the given time.
func (s *DerivedMetricsStore) MaxRevenueGrowth30d(ctx context.Context, before time.Time) (int64, error) {
	query := `
		SELECT greatest(max(revenue_growth_30d), toInt64(0))
		FROM template_metrics_derived FINAL
		WHERE calculated_at < ?
	`

	var highest int64
	if err := s.conn.QueryRow(ctx, query, before.UTC()).Scan(&highest); err != nil {
		return 0, fmt.Errorf("query max revenue_growth_30d: %w", err)
	}
	return highest, nil
}

// chRows is the subset of driver.Rows used by scanners.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanDerivedMetrics(rows chRows) ([]*domain.DerivedMetrics, error) {
	var result []*domain.DerivedMetrics
	for rows.Next() {
		var r domain.DerivedMetrics
		err := rows.Scan(
			&r.CalculatedAt, &r.TemplateID, &r.TemplateName,
			&r.RevenueGrowth24h, &r.RevenueGrowth7d, &r.RevenueGrowth30d,
			&r.ActiveProjectsChange24h, &r.ActiveProjectsChange7d, &r.ActiveProjectsChange30d,
			&r.AvgDailyRevenue7d, &r.AvgDailyRevenue30d,
			&r.ProfitabilityScore, &r.NormMaxTotal, &r.NormMaxGrowth30d,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.CalculatedAt = r.CalculatedAt.UTC()
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}
