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

// DerivedMetricsStore is an in-memory implementation of storage.DerivedMetricsStore.
type DerivedMetricsStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[string]*domain.DerivedMetrics // keyed by (calculated_at, template_id)
}

// NewDerivedMetricsStore creates a new in-memory derived metrics store.
func NewDerivedMetricsStore() *DerivedMetricsStore {
	return &DerivedMetricsStore{
		data: make(map[string]*domain.DerivedMetrics),
	}
}

func derivedKey(calculatedAt time.Time, templateID string) string {
	return fmt.Sprintf("%d|%s", calculatedAt.UnixNano(), templateID)
}

// Upsert writes records, replacing rows with the same (calculated_at, template_id).
func (s *DerivedMetricsStore) Upsert(_ context.Context, records []*domain.DerivedMetrics) error {
	if len(records) == 0 {
		return nil
	}

	for _, r := range records {
		if r == nil || r.TemplateID == "" || r.CalculatedAt.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		key := derivedKey(r.CalculatedAt, r.TemplateID)
		row := *r
		row.CalculatedAt = r.CalculatedAt.UTC()
		if existing, ok := s.data[key]; ok {
			row.ID = existing.ID
		} else {
			s.nextID++
			row.ID = s.nextID
		}
		s.data[key] = &row
	}

	return nil
}

// GetByCalculatedAt retrieves all records of one calculation, ordered by template_id.
func (s *DerivedMetricsStore) GetByCalculatedAt(_ context.Context, calculatedAt time.Time) ([]*domain.DerivedMetrics, error) {
	return s.filter(func(r *domain.DerivedMetrics) bool {
		return r.CalculatedAt.Equal(calculatedAt)
	}), nil
}

// GetByTemplateID retrieves all records for a template, ordered by calculated_at ASC.
func (s *DerivedMetricsStore) GetByTemplateID(_ context.Context, templateID string) ([]*domain.DerivedMetrics, error) {
	return s.filter(func(r *domain.DerivedMetrics) bool {
		return r.TemplateID == templateID
	}), nil
}

// GetLatest retrieves the latest record for every template, ordered by template_id.
func (s *DerivedMetricsStore) GetLatest(_ context.Context) ([]*domain.DerivedMetrics, error) {
	return s.latest(), nil
}

// TopN retrieves up to n latest-per-template records ordered by field DESC.
func (s *DerivedMetricsStore) TopN(_ context.Context, field domain.RankField, n int) ([]*domain.DerivedMetrics, error) {
	if !field.Valid() || n <= 0 {
		return nil, storage.ErrInvalidInput
	}

	result := s.latest()
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Value(field) > result[j].Value(field)
	})

	if len(result) > n {
		result = result[:n]
	}
	return result, nil
}

// MaxRevenueGrowth30d returns the largest revenue_growth_30d calculated before the given time.
func (s *DerivedMetricsStore) MaxRevenueGrowth30d(_ context.Context, before time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var highest int64
	for _, r := range s.data {
		if r.CalculatedAt.Before(before) && r.RevenueGrowth30d > highest {
			highest = r.RevenueGrowth30d
		}
	}
	return highest, nil
}

func (s *DerivedMetricsStore) latest() []*domain.DerivedMetrics {
	s.mu.RLock()
	latest := make(map[string]*domain.DerivedMetrics)
	for _, r := range s.data {
		if cur, ok := latest[r.TemplateID]; !ok || r.CalculatedAt.After(cur.CalculatedAt) {
			latest[r.TemplateID] = r
		}
	}

	result := make([]*domain.DerivedMetrics, 0, len(latest))
	for _, r := range latest {
		row := *r
		result = append(result, &row)
	}
	s.mu.RUnlock()

	sortDerived(result)
	return result
}

func (s *DerivedMetricsStore) filter(match func(*domain.DerivedMetrics) bool) []*domain.DerivedMetrics {
	s.mu.RLock()
	var result []*domain.DerivedMetrics
	for _, r := range s.data {
		if match(r) {
			row := *r
			result = append(result, &row)
		}
	}
	s.mu.RUnlock()

	sortDerived(result)
	return result
}

// sortDerived orders by (template_id, calculated_at) ASC.
func sortDerived(records []*domain.DerivedMetrics) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].TemplateID != records[j].TemplateID {
			return records[i].TemplateID < records[j].TemplateID
		}
		return records[i].CalculatedAt.Before(records[j].CalculatedAt)
	})
}

var _ storage.DerivedMetricsStore = (*DerivedMetricsStore)(nil)
