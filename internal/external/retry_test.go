package external

import (
	"context"
	"errors"
	"testing"
	"time"

	"envistream/internal/types"
)

func transientErr() error {
	return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream down", nil)
}

func permanentErr() error {
	return types.NewAppError(types.ErrCodeUpstreamRejected, "bad request", nil)
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, BackoffFactor: 2, Sleep: func(time.Duration) {
		t.Fatal("no sleep expected on first-attempt success")
	}}

	err := Retry(context.Background(), policy, func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_ExhaustsAttemptsOnTransient(t *testing.T) {
	calls := 0
	var delays []time.Duration
	policy := RetryPolicy{
		MaxAttempts:   3,
		BackoffFactor: 2,
		Sleep:         func(d time.Duration) { delays = append(delays, d) },
	}

	err := Retry(context.Background(), policy, func(context.Context) error {
		calls++
		return transientErr()
	})
	if err == nil {
		t.Fatal("expected the final transient error")
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls)
	}
	if len(delays) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d", len(delays))
	}
	// factor^attempt seconds: 2s then 4s, strictly increasing.
	if delays[0] != 2*time.Second {
		t.Errorf("expected first delay 2s, got %s", delays[0])
	}
	if delays[1] != 4*time.Second {
		t.Errorf("expected second delay 4s, got %s", delays[1])
	}
	if delays[1] <= delays[0] {
		t.Error("expected strictly increasing delays")
	}
}

func TestRetry_PermanentFailureTerminatesImmediately(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, BackoffFactor: 2, Sleep: func(time.Duration) {
		t.Fatal("no sleep expected for permanent failures")
	}}

	err := Retry(context.Background(), policy, func(context.Context) error {
		calls++
		return permanentErr()
	})
	if err == nil {
		t.Fatal("expected the permanent error")
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", calls)
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeUpstreamRejected {
		t.Errorf("expected the original permanent error, got %v", err)
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	policy := RetryPolicy{
		MaxAttempts:   3,
		BackoffFactor: 2,
		Sleep:         func(time.Duration) {},
	}

	err := Retry(context.Background(), policy, func(context.Context) error {
		calls++
		if calls < 3 {
			return transientErr()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRetry_CancelledContextStopsAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, BackoffFactor: 2, Sleep: func(time.Duration) {}}

	err := Retry(ctx, policy, func(context.Context) error {
		calls++
		return transientErr()
	})
	if err == nil {
		t.Fatal("expected a cancellation error")
	}
	if calls != 0 {
		t.Errorf("expected 0 attempts after cancellation, got %d", calls)
	}
}

func TestRetryPolicy_DelayIsCapped(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 10, BackoffFactor: 2, MaxWait: 5 * time.Second}

	if got := policy.Delay(1); got != 2*time.Second {
		t.Errorf("expected 2s for attempt 1, got %s", got)
	}
	if got := policy.Delay(2); got != 4*time.Second {
		t.Errorf("expected 4s for attempt 2, got %s", got)
	}
	if got := policy.Delay(3); got != 5*time.Second {
		t.Errorf("expected cap of 5s for attempt 3, got %s", got)
	}
	if got := policy.Delay(8); got != 5*time.Second {
		t.Errorf("expected cap of 5s for attempt 8, got %s", got)
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()
	if policy.MaxAttempts != 3 {
		t.Errorf("expected 3 max attempts, got %d", policy.MaxAttempts)
	}
	if policy.BackoffFactor != 2 {
		t.Errorf("expected backoff factor 2, got %v", policy.BackoffFactor)
	}
}
