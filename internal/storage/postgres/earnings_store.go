package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/storage"
)

// EarningsStore implements storage.EarningsStore using PostgreSQL.
type EarningsStore struct {
	pool *Pool
}

// NewEarningsStore creates a new EarningsStore.
func NewEarningsStore(pool *Pool) *EarningsStore {
	return &EarningsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EarningsStore = (*EarningsStore)(nil)

const earningsColumns = `
	id, collected_at,
	lifetime_earnings, lifetime_cash_withdrawals, lifetime_credit_withdrawals, available_balance,
	template_earnings_lifetime, template_earnings_30d,
	referral_earnings_lifetime, referral_earnings_30d,
	bounty_earnings_lifetime, bounty_earnings_30d,
	thread_earnings_lifetime, thread_earnings_30d`

// Insert adds a new snapshot. Returns ErrDuplicateKey if collected_at exists.
func (s *EarningsStore) Insert(ctx context.Context, e *domain.EarningsSnapshot) error {
	query := `
		INSERT INTO earnings_snapshots (
			collected_at,
			lifetime_earnings, lifetime_cash_withdrawals, lifetime_credit_withdrawals, available_balance,
			template_earnings_lifetime, template_earnings_30d,
			referral_earnings_lifetime, referral_earnings_30d,
			bounty_earnings_lifetime, bounty_earnings_30d,
			thread_earnings_lifetime, thread_earnings_30d
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		e.CollectedAt.UTC(),
		e.LifetimeEarnings,
		e.LifetimeCashWithdrawals,
		e.LifetimeCreditWithdrawals,
		e.AvailableBalance,
		e.TemplateEarningsLifetime,
		e.TemplateEarnings30d,
		e.ReferralEarningsLifetime,
		e.ReferralEarnings30d,
		e.BountyEarningsLifetime,
		e.BountyEarnings30d,
		e.ThreadEarningsLifetime,
		e.ThreadEarnings30d,
	).Scan(&e.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert earnings snapshot: %w", err)
	}
	return nil
}

// GetLatest retrieves the most recent snapshot. Returns ErrNotFound if empty.
func (s *EarningsStore) GetLatest(ctx context.Context) (*domain.EarningsSnapshot, error) {
	query := `SELECT ` + earningsColumns + ` FROM earnings_snapshots ORDER BY collected_at DESC LIMIT 1`

	e, err := scanEarnings(s.pool.QueryRow(ctx, query))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest earnings snapshot: %w", err)
	}
	return e, nil
}

// GetByTimeRange retrieves snapshots collected within [start, end] (inclusive), ordered ASC.
func (s *EarningsStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.EarningsSnapshot, error) {
	query := `
		SELECT ` + earningsColumns + `
		FROM earnings_snapshots
		WHERE collected_at >= $1 AND collected_at <= $2
		ORDER BY collected_at ASC
	`

	rows, err := s.pool.Query(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("get earnings snapshots by time range: %w", err)
	}
	defer rows.Close()

	var result []*domain.EarningsSnapshot
	for rows.Next() {
		e, err := scanEarnings(rows)
		if err != nil {
			return nil, fmt.Errorf("scan earnings snapshot: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate earnings snapshots: %w", err)
	}
	return result, nil
}

func scanEarnings(row pgx.Row) (*domain.EarningsSnapshot, error) {
	var e domain.EarningsSnapshot
	err := row.Scan(
		&e.ID,
		&e.CollectedAt,
		&e.LifetimeEarnings,
		&e.LifetimeCashWithdrawals,
		&e.LifetimeCreditWithdrawals,
		&e.AvailableBalance,
		&e.TemplateEarningsLifetime,
		&e.TemplateEarnings30d,
		&e.ReferralEarningsLifetime,
		&e.ReferralEarnings30d,
		&e.BountyEarningsLifetime,
		&e.BountyEarnings30d,
		&e.ThreadEarningsLifetime,
		&e.ThreadEarnings30d,
	)
	if err != nil {
		return nil, err
	}
	e.CollectedAt = e.CollectedAt.UTC()
	return &e, nil
}
