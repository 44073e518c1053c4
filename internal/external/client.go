// Package external provides the anti-corruption layer between the ingestion
// domain logic and third-party vendor APIs. All outbound HTTP calls are routed
// through the Executor, which enforces consistent resilience patterns: circuit
// breaking, per-call timeouts, run-ID propagation, and error classification.
//
// The Executor performs exactly one network call per Execute invocation.
// Retry decisions are owned by RetryPolicy (retry.go) so that callers control
// how many attempts a task consumes.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"envistream/internal/types"

	"github.com/sony/gobreaker/v2"
)

// DefaultCallTimeout is the overall per-call deadline applied to every
// outbound request unless overridden with WithTimeout.
const DefaultCallTimeout = 60 * time.Second

// Request describes one fully-formed outbound HTTP call.
type Request struct {
	Method  string
	URL     string
	Params  url.Values
	Headers http.Header
	Body    []byte
}

// Response is the materialized body of a successful (2xx) call.
type Response struct {
	StatusCode int
	Body       []byte
}

// Executor wraps an *http.Client and a circuit breaker to enforce consistent
// resilience patterns on all outbound HTTP calls. Vendor clients share one
// Executor per upstream so the breaker sees that upstream's full traffic.
type Executor struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	timeout   time.Duration
	userAgent string
}

// ExecutorOption is a functional option for configuring an Executor.
type ExecutorOption func(*Executor)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = d
	}
}

// WithBreaker replaces the default circuit breaker. This is useful for
// testing or when sharing a breaker across executors.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) ExecutorOption {
	return func(e *Executor) {
		e.breaker = cb
	}
}

// NewExecutor creates an Executor with the given http client, breaker name,
// and user agent string.
func NewExecutor(httpClient *http.Client, breakerName string, userAgent string, opts ...ExecutorOption) *Executor {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	e := &Executor{
		client:    httpClient,
		breaker:   cb,
		timeout:   DefaultCallTimeout,
		userAgent: userAgent,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute performs exactly one HTTP call with:
//  1. Per-call timeout (default 60s)
//  2. Run-ID injection (X-Request-Id from context)
//  3. User-Agent header injection
//  4. Circuit breaker wrapping
//  5. Error classification to types.AppError
//
// Classification:
//   - 2xx            -> Response with materialized body
//   - 204            -> (nil, nil), an explicit "no data" result
//   - 429            -> transient upstream_rate_limited
//   - 5xx            -> transient upstream_unavailable
//   - other 4xx      -> permanent upstream_request_rejected
//   - timeout        -> transient upstream_timeout
//   - other I/O      -> transient upstream_unavailable
//   - breaker open   -> transient upstream_rate_limited
//
// Execute never retries; the caller owns retry decisions via RetryPolicy.
func (e *Executor) Execute(ctx context.Context, req Request) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	target := req.URL
	if len(req.Params) > 0 {
		target = req.URL + "?" + req.Params.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, target, body)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("failed to build %s request for %s", req.Method, req.URL),
			err,
		)
	}

	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if runID := types.GetRunID(ctx); runID != "" {
		httpReq.Header.Set("X-Request-Id", runID)
	}
	if e.userAgent != "" {
		httpReq.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.breaker.Execute(func() (*http.Response, error) {
		r, doErr := e.client.Do(httpReq)
		if doErr != nil {
			return nil, doErr
		}
		// Treat 5xx and 429 as errors for the circuit breaker.
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})

	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
		}
		return nil, e.classifyError(resp, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		// Nothing happened upstream; distinguishable from "something broke".
		return nil, nil
	}

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, types.NewAppError(
			types.ErrCodeUpstreamRejected,
			fmt.Sprintf("upstream rejected request (%d): %s", resp.StatusCode, truncateBody(payload)),
			nil,
		).WithDetails(map[string]any{"status_code": resp.StatusCode})
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"failed to read upstream response body",
			err,
		)
	}

	return &Response{StatusCode: resp.StatusCode, Body: raw}, nil
}

// classifyError translates breaker/transport failures into AppErrors.
func (e *Executor) classifyError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			"circuit breaker is open; upstream service unavailable",
			err,
		)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(
				types.ErrCodeUpstreamRateLimited,
				"upstream rate limit exceeded",
				err,
			).WithDetails(map[string]any{"status_code": resp.StatusCode})
		case resp.StatusCode >= 500:
			return types.NewAppError(
				types.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("upstream returned %d", resp.StatusCode),
				err,
			).WithDetails(map[string]any{"status_code": resp.StatusCode})
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewAppError(
			types.ErrCodeUpstreamTimeout,
			fmt.Sprintf("upstream call exceeded %s deadline", e.timeout),
			err,
		)
	}

	// Generic transport failure (connection refused, DNS, reset mid-body).
	return types.NewAppError(
		types.ErrCodeUpstreamUnavailable,
		"upstream request failed",
		err,
	)
}

// truncateBody returns a string representation of the body, truncated to a
// reasonable length for error messages.
func truncateBody(body []byte) string {
	const maxLen = 200
	s := string(body)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
