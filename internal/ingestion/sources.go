package ingestion

import (
	"context"
	"encoding/json"

	"railway-template-metrics/internal/domain"
)

// EarningsSource provides the aggregate earnings record for the account.
type EarningsSource interface {
	FetchEarnings(ctx context.Context) (*domain.EarningsRecord, error)
}

// TemplateSource provides the current list of tracked templates.
type TemplateSource interface {
	FetchTemplates(ctx context.Context) ([]*RawTemplate, error)
}

// RawTemplate is a template as delivered by a source. RawHealth carries the
// undecoded health value, which upstream sends as a number or a numeric string.
// When RawHealth is nil the embedded record's Health is used as is.
type RawTemplate struct {
	domain.TemplateRecord
	RawHealth json.RawMessage
}
