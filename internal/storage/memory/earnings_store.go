package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/storage"
)

// EarningsStore is an in-memory implementation of storage.EarningsStore.
type EarningsStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*domain.EarningsSnapshot // keyed by collected_at unix nanos
}

// NewEarningsStore creates a new in-memory earnings store.
func NewEarningsStore() *EarningsStore {
	return &EarningsStore{
		data: make(map[int64]*domain.EarningsSnapshot),
	}
}

// Insert adds a new snapshot. Returns ErrDuplicateKey if collected_at exists.
func (s *EarningsStore) Insert(_ context.Context, e *domain.EarningsSnapshot) error {
	if e == nil || e.CollectedAt.IsZero() {
		return storage.ErrInvalidInput
	}

	key := e.CollectedAt.UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.nextID++
	copy := *e
	copy.ID = s.nextID
	copy.CollectedAt = e.CollectedAt.UTC()
	s.data[key] = &copy
	e.ID = copy.ID
	return nil
}

// GetLatest retrieves the most recent snapshot. Returns ErrNotFound if empty.
func (s *EarningsStore) GetLatest(_ context.Context) (*domain.EarningsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.EarningsSnapshot
	for _, e := range s.data {
		if latest == nil || e.CollectedAt.After(latest.CollectedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	copy := *latest
	return &copy, nil
}

// GetByTimeRange retrieves snapshots collected within [start, end] (inclusive), ordered ASC.
func (s *EarningsStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.EarningsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EarningsSnapshot
	for _, e := range s.data {
		if !e.CollectedAt.Before(start) && !e.CollectedAt.After(end) {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CollectedAt.Before(result[j].CollectedAt)
	})

	return result, nil
}

var _ storage.EarningsStore = (*EarningsStore)(nil)
