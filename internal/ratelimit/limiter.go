package ratelimit

import (
	"context"
	"time"
)

// Decision is the result of one rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter caps how often a single client key may perform an action
// within a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
