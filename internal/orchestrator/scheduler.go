package orchestrator

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"railway-template-metrics/internal/observability"
)

// Runner executes one cycle. *Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, collectedAt time.Time) (*CycleResult, error)
}

// Scheduler runs cycles on a fixed interval and never overlaps them.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	metrics  *observability.Metrics
	logger   log.FieldLogger
	now      func() time.Time

	mu         sync.Mutex
	running    bool
	started    time.Time
	lastRun    time.Time
	lastResult *CycleResult
	lastErr    error
	runs       int
	failures   int
	skipped    int
}

// SchedulerOptions for creating Scheduler.
type SchedulerOptions struct {
	Runner   Runner
	Interval time.Duration // Default: 12h
	Metrics  *observability.Metrics
	Logger   log.FieldLogger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	interval := opts.Interval
	if interval <= 0 {
		interval = 12 * time.Hour
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	return &Scheduler{
		runner:   opts.Runner,
		interval: interval,
		metrics:  opts.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Start runs a cycle immediately and then on every tick until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.started = s.now()
	s.mu.Unlock()

	s.logger.WithField("interval", s.interval).Info("starting collection scheduler")

	s.TryRun(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.TryRun(ctx)
		}
	}
}

// TryRun runs one cycle stamped with the current time unless a cycle is
// already in progress. Reports whether a cycle was started.
func (s *Scheduler) TryRun(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.skipped++
		s.mu.Unlock()
		s.logger.Warn("cycle already running, skipping")
		s.metrics.RecordCycle(observability.StatusSkipped, 0, s.now())
		return false
	}
	s.running = true
	s.mu.Unlock()

	collectedAt := s.now().UTC().Truncate(time.Second)
	result, err := s.runner.Run(ctx, collectedAt)

	s.mu.Lock()
	s.running = false
	s.lastRun = collectedAt
	s.lastResult = result
	s.lastErr = err
	s.runs++
	if err != nil {
		s.failures++
	}
	s.mu.Unlock()

	return true
}

// Status is a point-in-time view of the scheduler, served on /status.
type Status struct {
	Status       string    `json:"status"`
	Uptime       string    `json:"uptime"`
	Interval     string    `json:"interval"`
	Running      bool      `json:"running"`
	Runs         int       `json:"runs"`
	Failures     int       `json:"failures"`
	Skipped      int       `json:"skipped"`
	LastRun      time.Time `json:"last_run,omitempty"`
	LastCycleID  string    `json:"last_cycle_id,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	LastInserted int       `json:"last_inserted"`
	LastIgnored  int       `json:"last_ignored"`
	LastDerived  int       `json:"last_derived"`
	DerivedError string    `json:"derived_error,omitempty"`
}

// Status returns the current scheduler status.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Status:   "running",
		Interval: s.interval.String(),
		Running:  s.running,
		Runs:     s.runs,
		Failures: s.failures,
		Skipped:  s.skipped,
		LastRun:  s.lastRun,
	}
	if !s.started.IsZero() {
		st.Uptime = s.now().Sub(s.started).Truncate(time.Second).String()
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	if r := s.lastResult; r != nil {
		st.LastCycleID = r.CycleID
		st.LastInserted = r.Batch.Inserted
		st.LastIgnored = r.Batch.Ignored
		st.LastDerived = len(r.Derived.Records)
		if r.DerivedErr != nil {
			st.DerivedError = r.DerivedErr.Error()
		}
	}
	return st
}
