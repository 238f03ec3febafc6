package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/storage"
)

// TemplateSnapshotStore is an in-memory implementation of storage.TemplateSnapshotStore.
type TemplateSnapshotStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[string]*domain.TemplateSnapshot // keyed by (collected_at, template_id)
}

// NewTemplateSnapshotStore creates a new in-memory template snapshot store.
func NewTemplateSnapshotStore() *TemplateSnapshotStore {
	return &TemplateSnapshotStore{
		data: make(map[string]*domain.TemplateSnapshot),
	}
}

// snapshotKey generates the composite unique key of a snapshot.
func snapshotKey(collectedAt time.Time, templateID string) string {
	return fmt.Sprintf("%d|%s", collectedAt.UnixNano(), templateID)
}

// InsertBatch adds snapshots, skipping any whose (collected_at, template_id) exists.
// Validation happens before any row is written.
func (s *TemplateSnapshotStore) InsertBatch(_ context.Context, snapshots []*domain.TemplateSnapshot) (storage.InsertResult, error) {
	var res storage.InsertResult
	if len(snapshots) == 0 {
		return res, nil
	}

	for _, snap := range snapshots {
		if snap == nil || snap.TemplateID == "" || snap.CollectedAt.IsZero() {
			return res, storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snapshots {
		key := snapshotKey(snap.CollectedAt, snap.TemplateID)
		if _, exists := s.data[key]; exists {
			res.Ignored++
			continue
		}

		s.nextID++
		c := cloneSnapshot(snap)
		c.ID = s.nextID
		c.CollectedAt = snap.CollectedAt.UTC()
		s.data[key] = c
		res.Inserted++
	}

	return res, nil
}

// GetByCollectedAt retrieves all snapshots of one cycle, ordered by template_id.
func (s *TemplateSnapshotStore) GetByCollectedAt(_ context.Context, collectedAt time.Time) ([]*domain.TemplateSnapshot, error) {
	return s.filter(func(snap *domain.TemplateSnapshot) bool {
		return snap.CollectedAt.Equal(collectedAt)
	}), nil
}

// GetByTimeRange retrieves snapshots within [start, end] (inclusive).
func (s *TemplateSnapshotStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.TemplateSnapshot, error) {
	return s.filter(func(snap *domain.TemplateSnapshot) bool {
		return !snap.CollectedAt.Before(start) && !snap.CollectedAt.After(end)
	}), nil
}

// GetHistory retrieves all snapshots for a template, ordered by collected_at ASC.
func (s *TemplateSnapshotStore) GetHistory(_ context.Context, templateID string) ([]*domain.TemplateSnapshot, error) {
	return s.filter(func(snap *domain.TemplateSnapshot) bool {
		return snap.TemplateID == templateID
	}), nil
}

// GetLatest retrieves the most recent snapshot of every template.
func (s *TemplateSnapshotStore) GetLatest(_ context.Context) ([]*domain.TemplateSnapshot, error) {
	s.mu.RLock()
	latest := make(map[string]*domain.TemplateSnapshot)
	for _, snap := range s.data {
		if cur, ok := latest[snap.TemplateID]; !ok || snap.CollectedAt.After(cur.CollectedAt) {
			latest[snap.TemplateID] = snap
		}
	}

	result := make([]*domain.TemplateSnapshot, 0, len(latest))
	for _, snap := range latest {
		result = append(result, cloneSnapshot(snap))
	}
	s.mu.RUnlock()

	sortSnapshots(result)
	return result, nil
}

// MaxTotalPayout returns the largest total_payout collected at or before upTo.
func (s *TemplateSnapshotStore) MaxTotalPayout(_ context.Context, upTo time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var highest int64
	for _, snap := range s.data {
		if !snap.CollectedAt.After(upTo) && snap.TotalPayout > highest {
			highest = snap.TotalPayout
		}
	}
	return highest, nil
}

func (s *TemplateSnapshotStore) filter(match func(*domain.TemplateSnapshot) bool) []*domain.TemplateSnapshot {
	s.mu.RLock()
	var result []*domain.TemplateSnapshot
	for _, snap := range s.data {
		if match(snap) {
			result = append(result, cloneSnapshot(snap))
		}
	}
	s.mu.RUnlock()

	sortSnapshots(result)
	return result
}

// sortSnapshots orders by (template_id, collected_at) ASC.
func sortSnapshots(snaps []*domain.TemplateSnapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].TemplateID != snaps[j].TemplateID {
			return snaps[i].TemplateID < snaps[j].TemplateID
		}
		return snaps[i].CollectedAt.Before(snaps[j].CollectedAt)
	})
}

func cloneSnapshot(snap *domain.TemplateSnapshot) *domain.TemplateSnapshot {
	c := *snap
	c.Tags = append([]string(nil), snap.Tags...)
	c.Languages = append([]string(nil), snap.Languages...)
	return &c
}

var _ storage.TemplateSnapshotStore = (*TemplateSnapshotStore)(nil)
