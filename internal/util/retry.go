package util

import (
	"context"
	"time"
)

// RetryPolicy controls bounded retries with multiplicative backoff. The same
// policy is applied uniformly to every historical request issued by the
// integrity engine.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Backoff     float64 // delay multiplier applied after each failure
}

// DefaultRetryPolicy matches the engine-wide polling defaults: ten attempts
// with the delay doubled after each failure.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 10, BaseDelay: 500 * time.Millisecond, Backoff: 2}
}

// Do calls fn up to p.MaxAttempts times, sleeping between attempts and
// multiplying the delay by p.Backoff after each failure. It returns nil on
// the first successful call, or the last error once the bound is exhausted.
// Context cancellation between attempts is respected.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff
	if backoff < 1 {
		backoff = 1
	}

	var err error
	delay := p.BaseDelay
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Don't sleep after the last failed attempt.
		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * backoff)
		}
	}
	return err
}

// Retry calls fn up to maxAttempts times with exponential backoff starting
// at baseDelay. Kept as a convenience wrapper around RetryPolicy.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	return RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: baseDelay, Backoff: 2}.Do(ctx, fn)
}
