// Package stub provides in-memory sources for tests and dry runs.
package stub

import (
	"context"

	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/ingestion"
)

// EarningsSource returns a fixed earnings record.
// Implements ingestion.EarningsSource interface.
type EarningsSource struct {
	Record *domain.EarningsRecord
	Err    error
	Calls  int
}

// NewEarningsSource creates a stub earnings source.
func NewEarningsSource(record *domain.EarningsRecord) *EarningsSource {
	return &EarningsSource{Record: record}
}

// FetchEarnings returns a copy of the configured record, or Err when set.
func (s *EarningsSource) FetchEarnings(_ context.Context) (*domain.EarningsRecord, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Record == nil {
		return &domain.EarningsRecord{}, nil
	}
	rec := *s.Record
	return &rec, nil
}

// TemplateSource returns a fixed template list.
// Implements ingestion.TemplateSource interface.
type TemplateSource struct {
	Templates []*ingestion.RawTemplate
	Err       error
	Calls     int
}

// NewTemplateSource creates a stub template source.
func NewTemplateSource(templates ...*ingestion.RawTemplate) *TemplateSource {
	return &TemplateSource{Templates: templates}
}

// FetchTemplates returns copies of the configured templates, or Err when set.
func (s *TemplateSource) FetchTemplates(_ context.Context) ([]*ingestion.RawTemplate, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	result := make([]*ingestion.RawTemplate, 0, len(s.Templates))
	for _, t := range s.Templates {
		c := *t
		result = append(result, &c)
	}
	return result, nil
}

// Template builds a raw template with the counters the formulas read.
func Template(id string, projects, active, recent, totalPayout int64, health int) *ingestion.RawTemplate {
	return &ingestion.RawTemplate{
		TemplateRecord: domain.TemplateRecord{
			ID:             id,
			Code:           id,
			Name:           "Template " + id,
			Health:         health,
			Projects:       projects,
			ActiveProjects: active,
			RecentProjects: recent,
			TotalPayout:    totalPayout,
		},
	}
}

var (
	_ ingestion.EarningsSource = (*EarningsSource)(nil)
	_ ingestion.TemplateSource = (*TemplateSource)(nil)
)
