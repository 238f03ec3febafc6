package domain

import "time"

// TemplateRecord is one tracked template as returned by the upstream API,
// with health already resolved to an integer at the ingestion boundary.
type TemplateRecord struct {
	ID          string
	Code        string
	Name        string
	Description string
	Category    string
	Image       string
	Status      string
	IsApproved  bool
	IsVerified  bool
	Tags        []string
	Languages   []string

	Health         int   // normalized health indicator
	Projects       int64 // lifetime project count
	ActiveProjects int64
	RecentProjects int64
	TotalPayout    int64 // minor units
}

// TemplateSnapshot is a point-in-time observation of a template.
// Corresponds to template_snapshots table; unique on (collected_at, template_id).
type TemplateSnapshot struct {
	ID          int64
	CollectedAt time.Time
	TemplateID  string
	Code        string
	Name        string
	Description string
	Category    string
	Image       string
	Status      string
	IsApproved  bool
	IsVerified  bool
	Tags        []string
	Languages   []string

	Health         int
	Projects       int64
	ActiveProjects int64
	RecentProjects int64
	TotalPayout    int64

	// Ratios computed once at write time from this snapshot's counters.
	RetentionRate    float64 // percent, [0,100], 2 decimals
	RevenuePerActive int64   // floor(total_payout / active_projects)
	GrowthMomentum   float64 // percent, [0,inf), 2 decimals
}
