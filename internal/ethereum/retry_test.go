package ethereum

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicy_SucceedsAfterFailures(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Delay: time.Millisecond}

	attempts := 0
	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryPolicy_ReturnsLastError(t *testing.T) {
	p := RetryPolicy{Attempts: 2, Delay: time.Millisecond}

	wantErr := errors.New("still broken")
	attempts := 0
	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetryPolicy_ZeroAttemptsRunsOnce(t *testing.T) {
	p := RetryPolicy{}

	attempts := 0
	p.Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("boom")
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryPolicy_CancellationStopsRetrying(t *testing.T) {
	p := RetryPolicy{Attempts: 10, Delay: 50 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := p.Do(ctx, func(context.Context) error {
		attempts++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryPolicy_PerAttemptTimeout(t *testing.T) {
	p := RetryPolicy{Attempts: 1, Timeout: 10 * time.Millisecond}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}
