package internal

import (
	"context"
	"time"
)

const defaultOpTimeout = 5 * time.Second

// WithTimeout bounds a context for one unit of work. A zero or negative
// duration falls back to the default.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = defaultOpTimeout
	}
	return context.WithTimeout(ctx, duration)
}
