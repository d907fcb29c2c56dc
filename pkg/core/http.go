package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/osmtiles/pkg/tracing"
)

// RetryOptions configures retry behavior for HTTP requests
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions provides the retry policy used by the network providers
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
}

// RequestFactory builds a fresh request for every attempt so bodies can be replayed
type RequestFactory func(ctx context.Context) (*http.Request, error)

// Doer executes a single HTTP request
type Doer func(ctx context.Context, req *http.Request) (*http.Response, error)

// WithRetry executes requests produced by factory until one returns 200 OK.
// Transport errors, 429 and 5xx responses are retried with exponential
// backoff; a Retry-After header on the failed response overrides the delay
// up to MaxDelay. Any other status fails immediately. Non-OK responses are closed.
func WithRetry(ctx context.Context, service string, factory RequestFactory, do Doer, options RetryOptions) (*http.Response, error) {
	ctx, span := tracing.StartSpan(ctx, "http.request "+service,
		trace.WithAttributes(
			attribute.String(tracing.AttrServiceName, service),
			attribute.Int("http.retry.max_attempts", options.MaxAttempts),
		),
	)
	defer span.End()

	logger := slog.Default().With("component", "http", "service", service)
	attempts := max(options.MaxAttempts, 1)

	var lastErr error
	backoff := options.InitialDelay
	wait := backoff

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			tracing.AddEvent(ctx, "retry_attempt",
				trace.WithAttributes(
					attribute.Int("attempt", attempt),
					attribute.Int64("delay_ms", wait.Milliseconds()),
				),
			)
			logger.Info("retrying request", "attempt", attempt, "max_attempts", attempts, "delay", wait, "last_error", lastErr)

			select {
			case <-time.After(wait):
			case <-ctx.Done():
				span.SetStatus(codes.Error, "request cancelled")
				return nil, NewError(ErrNetwork, "request cancelled").WithCause(ctx.Err())
			}
			backoff = min(time.Duration(float64(backoff)*options.Multiplier), options.MaxDelay)
			wait = backoff
		}

		req, err := factory(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "request creation failed")
			return nil, NewError(ErrInternal, "failed to create request").WithCause(err)
		}

		resp, err := do(ctx, req)
		if err != nil {
			lastErr = NewError(ErrNetwork, "request failed").WithCause(err)
			logger.Warn("request failed", "error", err, "attempt", attempt)
			continue
		}
		if resp.StatusCode == http.StatusOK {
			span.SetAttributes(
				attribute.String(tracing.AttrHTTPMethod, req.Method),
				attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode),
				attribute.Int("http.retry.attempts", attempt),
			)
			span.SetStatus(codes.Ok, "")
			logger.Debug("request successful", "status", resp.StatusCode, "url", req.URL.String())
			return resp, nil
		}

		lastErr = ServiceError(service, resp.StatusCode, fmt.Sprintf("HTTP status %d", resp.StatusCode))
		logger.Warn("request returned error status", "status", resp.StatusCode, "attempt", attempt)
		if d, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
			wait = min(d, options.MaxDelay)
		}
		if err := resp.Body.Close(); err != nil {
			logger.Warn("failed to close response body", "error", err)
		}
		if !retryableStatus(resp.StatusCode) {
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "request failed after retries")
	return nil, lastErr
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// retryAfter parses the delay-seconds form of a Retry-After header.
func retryAfter(v string) (time.Duration, bool) {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
