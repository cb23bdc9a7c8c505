package core

import (
	"context"
	"sync"
	"time"
)

// MemoryRateLimiter counts issues per key in fixed windows. Closed windows
// linger until Purge.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*issueWindow
}

type issueWindow struct {
	count     int
	windowEnd time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		now:     time.Now,
		windows: make(map[string]*issueWindow),
	}
}

func (r *MemoryRateLimiter) CheckAndIncrement(_ context.Context, key string, limit int, window time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	w, ok := r.windows[key]
	if !ok || now.After(w.windowEnd) {
		r.windows[key] = &issueWindow{count: 1, windowEnd: now.Add(window)}
		return nil
	}
	if w.count >= limit {
		return &RateLimited{RetryAfter: w.windowEnd.Sub(now)}
	}
	w.count++
	return nil
}

// Purge drops windows that closed before the given time.
func (r *MemoryRateLimiter) Purge(before time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, w := range r.windows {
		if w.windowEnd.Before(before) {
			delete(r.windows, k)
			n++
		}
	}
	return n
}
