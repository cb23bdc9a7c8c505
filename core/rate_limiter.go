package core

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter caps how many codes a recipient may be issued per window.
// A refusal is a *RateLimited error.
type RateLimiter interface {
	CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) error
}

// RateLimited reports when the recipient may ask again.
type RateLimited struct {
	RetryAfter time.Duration
}

func (e *RateLimited) Error() string {
	return fmt.Sprintf("%v: retry in %s", ErrRateLimitExceeded, e.RetryAfter.Round(time.Second))
}

func (e *RateLimited) Unwrap() error { return ErrRateLimitExceeded }
