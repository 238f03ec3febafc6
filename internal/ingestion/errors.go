package ingestion

import (
	"fmt"

	"railway-template-metrics/internal/storage"
)

// ValidationError reports a template that cannot be stored as received.
// It matches storage.ErrInvalidInput with errors.Is.
type ValidationError struct {
	TemplateID string
	Err        error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("template %q: %v", e.TemplateID, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports storage.ErrInvalidInput as a match.
func (e *ValidationError) Is(target error) bool {
	return target == storage.ErrInvalidInput
}
