package domain

import "time"

// EarningsRecord is the raw earnings payload returned by the upstream API.
// All amounts are signed minor units (cents).
type EarningsRecord struct {
	LifetimeEarnings          int64 `json:"lifetimeEarnings"`
	LifetimeCashWithdrawals   int64 `json:"lifetimeCashWithdrawals"`
	LifetimeCreditWithdrawals int64 `json:"lifetimeCreditWithdrawals"`
	AvailableBalance          int64 `json:"availableBalance"`
	TemplateEarningsLifetime  int64 `json:"templateEarningsLifetime"`
	TemplateEarnings30d       int64 `json:"templateEarnings30d"`
	ReferralEarningsLifetime  int64 `json:"referralEarningsLifetime"`
	ReferralEarnings30d       int64 `json:"referralEarnings30d"`
	BountyEarningsLifetime    int64 `json:"bountyEarningsLifetime"`
	BountyEarnings30d         int64 `json:"bountyEarnings30d"`
	ThreadEarningsLifetime    int64 `json:"threadEarningsLifetime"`
	ThreadEarnings30d         int64 `json:"threadEarnings30d"`
}

// EarningsSnapshot is one immutable earnings observation per collection cycle.
// Corresponds to earnings_snapshots table in PostgreSQL.
type EarningsSnapshot struct {
	ID          int64     // surrogate key, set by the store
	CollectedAt time.Time // cycle timestamp, unique
	EarningsRecord
}
