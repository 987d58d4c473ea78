package numerator

import (
	"context"
	"time"
)

// Generator produces sequential references such as INV-2024-00001.
// The PostgreSQL implementation lives in infrastructure/numerator.
type Generator interface {
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)
}
