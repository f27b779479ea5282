package ethereum

import (
	"context"
	"time"
)

// RetryPolicy bounds outbound RPC/HTTP calls: a fixed number of attempts,
// a fixed inter-attempt delay, and a per-attempt timeout. One policy object
// is shared by every component that talks to the network so behavior stays
// consistent and independently testable.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	Timeout  time.Duration
}

// DefaultRetryPolicy returns the policy applied to all outbound calls unless
// a component overrides it.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Delay:    500 * time.Millisecond,
		Timeout:  10 * time.Second,
	}
}

// Do runs fn up to p.Attempts times, waiting p.Delay between attempts.
// Each attempt runs under a context bounded by p.Timeout. The last error is
// returned after exhaustion; context cancellation stops retrying immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay):
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}
