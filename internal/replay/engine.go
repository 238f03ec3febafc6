package replay

import (
	"context"
	"time"

	"railway-template-metrics/internal/derived"
)

// Engine derives metrics for one stored cycle. *derived.Calculator implements it.
type Engine interface {
	Run(ctx context.Context, calculatedAt time.Time) derived.Result
}
