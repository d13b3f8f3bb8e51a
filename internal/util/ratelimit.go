package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter paces venue REST calls to a per-minute budget. Callers are
// handed evenly spaced slots; the first call proceeds immediately and each
// subsequent call waits for the start of its slot. Backfill chunks for one
// venue share a single limiter so a large repair never exceeds the venue's
// request budget.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewRateLimiter builds a limiter allowing perMinute calls per minute.
// A non-positive budget disables pacing entirely.
func NewRateLimiter(perMinute int) *RateLimiter {
	var interval time.Duration
	if perMinute > 0 {
		interval = time.Minute / time.Duration(perMinute)
	}
	return &RateLimiter{interval: interval}
}

// Wait blocks until the caller's slot opens or ctx is cancelled. Slots are
// claimed in call order.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.interval <= 0 {
		return ctx.Err()
	}

	rl.mu.Lock()
	now := time.Now()
	at := rl.next
	if at.Before(now) {
		at = now
	}
	rl.next = at.Add(rl.interval)
	rl.mu.Unlock()

	delay := time.Until(at)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
