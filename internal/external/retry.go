package external

import (
	"context"
	"math"
	"time"

	"envistream/internal/types"
)

// RetryPolicy configures the retry behavior for fetch tasks.
//
// A task is attempted up to MaxAttempts times in total. The delay before the
// next attempt after the n-th failure is BackoffFactor^n seconds, capped at
// MaxWait, which makes delays strictly increasing until the cap. Only
// transient failures (timeouts, 5xx, rate limits) consume retries; permanent
// failures terminate immediately.
type RetryPolicy struct {
	MaxAttempts   int
	BackoffFactor float64
	MaxWait       time.Duration

	// Sleep overrides the sleep function used between attempts.
	// Intended for testing to avoid real delays; defaults to time.Sleep.
	Sleep func(time.Duration)
}

// DefaultRetryPolicy returns sensible defaults for external API calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		BackoffFactor: 2,
		MaxWait:       30 * time.Second,
	}
}

// Delay returns the backoff duration after the attempt-th failed attempt
// (1-based): BackoffFactor^attempt seconds, capped at MaxWait.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	secs := math.Pow(p.BackoffFactor, float64(attempt))
	d := time.Duration(secs * float64(time.Second))
	if p.MaxWait > 0 && d > p.MaxWait {
		return p.MaxWait
	}
	return d
}

// Retry runs fn until it succeeds, returns a permanent error, or the policy's
// attempt budget is exhausted. The final transient error is returned after the
// last attempt; the caller decides whether that abandons the task.
//
// Context cancellation is checked before every attempt so a cancelled run does
// not burn its remaining backoff sleeps.
func Retry(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	sleep := policy.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return types.NewAppError(
				types.ErrCodeUpstreamTimeout,
				"fetch run cancelled before attempt",
				err,
			)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !types.IsTransient(lastErr) {
			return lastErr
		}
		if attempt < attempts {
			sleep(policy.Delay(attempt))
		}
	}

	return lastErr
}
