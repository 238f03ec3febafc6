// Package verification checks that stored derived metrics are reproducible:
// a stored calculation is computed again from snapshot history and compared
// field by field.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/metrics"
	"railway-template-metrics/internal/storage"
)

// FloatTolerance is the tolerance for profitability score comparisons.
const FloatTolerance = 1e-7

// ErrNothingStored is returned when no derived rows exist at the requested time.
var ErrNothingStored = errors.New("no derived metrics stored at calculation time")

// FieldDivergence represents a mismatch between stored and recomputed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // recomputed value
}

// VerificationResult contains the result of verifying one template.
type VerificationResult struct {
	TemplateID  string
	Match       bool
	Divergences []FieldDivergence
}

// VerificationReport contains results for one calculation timestamp.
type VerificationReport struct {
	CalculatedAt       time.Time
	TotalTemplates     int // union of stored and recomputed templates
	MatchedTemplates   int
	DivergentTemplates int
	Results            []VerificationResult
}

// Consistent reports whether every template matched.
func (r *VerificationReport) Consistent() bool {
	return r.DivergentTemplates == 0
}

// Computer derives records for a timestamp without writing them.
// *derived.Calculator implements it.
type Computer interface {
	Compute(ctx context.Context, calculatedAt time.Time) ([]*domain.DerivedMetrics, metrics.Maxima, error)
}

// Verifier compares stored derived metrics with a fresh computation.
type Verifier struct {
	derivedStore storage.DerivedMetricsStore
	computer     Computer
}

// NewVerifier creates a new Verifier.
func NewVerifier(derivedStore storage.DerivedMetricsStore, computer Computer) *Verifier {
	return &Verifier{derivedStore: derivedStore, computer: computer}
}

// VerifyAt verifies every derived row stored at calculatedAt.
func (v *Verifier) VerifyAt(ctx context.Context, calculatedAt time.Time) (*VerificationReport, error) {
	calculatedAt = calculatedAt.UTC()

	// 1. Load stored rows
	stored, err := v.derivedStore.GetByCalculatedAt(ctx, calculatedAt)
	if err != nil {
		return nil, fmt.Errorf("load stored derived metrics: %w", err)
	}
	if len(stored) == 0 {
		return nil, ErrNothingStored
	}

	// 2. Recompute from snapshot history
	recomputed, _, err := v.computer.Compute(ctx, calculatedAt)
	if err != nil {
		return nil, fmt.Errorf("recompute derived metrics: %w", err)
	}

	// 3. Compare per template, in stored order, then recomputed-only templates
	byID := make(map[string]*domain.DerivedMetrics, len(recomputed))
	for _, r := range recomputed {
		byID[r.TemplateID] = r
	}

	report := &VerificationReport{CalculatedAt: calculatedAt}
	for _, s := range stored {
		r, ok := byID[s.TemplateID]
		delete(byID, s.TemplateID)

		var divs []FieldDivergence
		if ok {
			divs = CompareDerivedMetrics(s, r)
		} else {
			divs = []FieldDivergence{{Field: "TemplateID", Expected: s.TemplateID, Actual: nil}}
		}
		report.add(s.TemplateID, divs)
	}
	for _, r := range recomputed {
		if _, extra := byID[r.TemplateID]; extra {
			report.add(r.TemplateID, []FieldDivergence{{Field: "TemplateID", Expected: nil, Actual: r.TemplateID}})
		}
	}

	return report, nil
}

func (r *VerificationReport) add(templateID string, divs []FieldDivergence) {
	r.TotalTemplates++
	res := VerificationResult{TemplateID: templateID, Match: len(divs) == 0, Divergences: divs}
	if res.Match {
		r.MatchedTemplates++
	} else {
		r.DivergentTemplates++
	}
	r.Results = append(r.Results, res)
}

// CompareDerivedMetrics compares two records of the same template and returns divergences.
// Uses FloatTolerance for the score. ID is assigned by the store and not compared.
func CompareDerivedMetrics(stored, recomputed *domain.DerivedMetrics) []FieldDivergence {
	var divergences []FieldDivergence

	ints := []struct {
		field    string
		expected int64
		actual   int64
	}{
		{"RevenueGrowth24h", stored.RevenueGrowth24h, recomputed.RevenueGrowth24h},
		{"RevenueGrowth7d", stored.RevenueGrowth7d, recomputed.RevenueGrowth7d},
		{"RevenueGrowth30d", stored.RevenueGrowth30d, recomputed.RevenueGrowth30d},
		{"ActiveProjectsChange24h", stored.ActiveProjectsChange24h, recomputed.ActiveProjectsChange24h},
		{"ActiveProjectsChange7d", stored.ActiveProjectsChange7d, recomputed.ActiveProjectsChange7d},
		{"ActiveProjectsChange30d", stored.ActiveProjectsChange30d, recomputed.ActiveProjectsChange30d},
		{"AvgDailyRevenue7d", stored.AvgDailyRevenue7d, recomputed.AvgDailyRevenue7d},
		{"AvgDailyRevenue30d", stored.AvgDailyRevenue30d, recomputed.AvgDailyRevenue30d},
		{"NormMaxTotal", stored.NormMaxTotal, recomputed.NormMaxTotal},
		{"NormMaxGrowth30d", stored.NormMaxGrowth30d, recomputed.NormMaxGrowth30d},
	}
	for _, c := range ints {
		if c.expected != c.actual {
			divergences = append(divergences, FieldDivergence{Field: c.field, Expected: c.expected, Actual: c.actual})
		}
	}

	// Score is the value consumers rank by
	if math.Abs(stored.ProfitabilityScore-recomputed.ProfitabilityScore) > FloatTolerance {
		divergences = append(divergences, FieldDivergence{
			Field:    "ProfitabilityScore",
			Expected: stored.ProfitabilityScore,
			Actual:   recomputed.ProfitabilityScore,
		})
	}

	return divergences
}
