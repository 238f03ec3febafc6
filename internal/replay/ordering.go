package replay

import (
	"sort"
	"time"

	"railway-template-metrics/internal/domain"
)

// CycleTimestamps returns the distinct collected_at values of snaps, ASC.
// Each one is a stored collection cycle.
func CycleTimestamps(snaps []*domain.TemplateSnapshot) []time.Time {
	seen := make(map[int64]struct{}, len(snaps))
	var out []time.Time
	for _, s := range snaps {
		key := s.CollectedAt.UnixNano()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s.CollectedAt.UTC())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Before(out[j])
	})
	return out
}
