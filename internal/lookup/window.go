package lookup

import (
	"sort"
	"time"

	"railway-template-metrics/internal/domain"
)

// PreviousInWindow returns the comparison snapshot for w: the earliest snapshot
// with CollectedAt in [target - w.Duration, target), which is the observation
// nearest the window boundary. history must be sorted by CollectedAt ASC.
// Returns (nil, false) when the window holds no snapshot (cold start).
func PreviousInWindow(target time.Time, w domain.Window, history []*domain.TemplateSnapshot) (*domain.TemplateSnapshot, bool) {
	boundary := w.Boundary(target)

	i := sort.Search(len(history), func(i int) bool {
		return !history[i].CollectedAt.Before(boundary)
	})
	if i < len(history) && history[i].CollectedAt.Before(target) {
		return history[i], true
	}
	return nil, false
}

// WindowDelta is the comparison of a current snapshot against one lookback window.
type WindowDelta struct {
	Window        domain.Window
	Found         bool  // a real previous snapshot exists in the window
	RevenueGrowth int64 // current.TotalPayout - previous.TotalPayout
	ActiveChange  int64 // current.ActiveProjects - previous.ActiveProjects
	AvgDailyRate  int64 // RevenueGrowth / Window.Days, 0 without a real candidate
}

// Compare computes the delta of current against the comparison snapshot of w.
// Without a candidate the current snapshot stands in as previous and all deltas are 0.
func Compare(current *domain.TemplateSnapshot, w domain.Window, history []*domain.TemplateSnapshot) WindowDelta {
	prev, found := PreviousInWindow(current.CollectedAt, w, history)
	if !found {
		prev = current
	}

	d := WindowDelta{
		Window:        w,
		Found:         found,
		RevenueGrowth: current.TotalPayout - prev.TotalPayout,
		ActiveChange:  current.ActiveProjects - prev.ActiveProjects,
	}
	if found && w.Days > 0 {
		d.AvgDailyRate = d.RevenueGrowth / w.Days
	}
	return d
}
