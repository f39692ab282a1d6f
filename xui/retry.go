package xui

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy bounds retries of transient panel failures with
// exponential backoff and jitter. Auth failures are never retried here.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    15 * time.Second,
	}
}

// Do runs op until it succeeds, fails with a non-transient error, the
// attempt budget is exhausted, or ctx is cancelled. The last error is
// returned as-is.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.delay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		var transient *TransientError
		if !errors.As(lastErr, &transient) {
			return lastErr
		}
	}
	return lastErr
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	// Up to 50% jitter so concurrent retries don't align.
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}
