package osm

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/osmtiles/pkg/tracing"
)

var (
	httpClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: 120 * time.Second,
	}

	mu        sync.RWMutex
	userAgent = DefaultUserAgent
	// One request per second per service unless reconfigured.
	limiters = map[string]*rate.Limiter{
		tracing.ServiceNominatim: rate.NewLimiter(rate.Limit(1), 1),
		tracing.ServiceOverpass:  rate.NewLimiter(rate.Limit(1), 1),
	}
)

// SetRateLimit replaces the limiter for a service
func SetRateLimit(service string, rps float64, burst int) {
	mu.Lock()
	defer mu.Unlock()
	limiters[service] = rate.NewLimiter(rate.Limit(rps), burst)
}

// SetUserAgent sets the User-Agent string
func SetUserAgent(ua string) {
	mu.Lock()
	defer mu.Unlock()
	userAgent = ua
}

// UserAgent returns the current User-Agent string
func UserAgent() string {
	mu.RLock()
	defer mu.RUnlock()
	return userAgent
}

// SetHTTPClient replaces the shared HTTP client
func SetHTTPClient(c *http.Client) {
	mu.Lock()
	defer mu.Unlock()
	httpClient = c
}

func limiterFor(service string) *rate.Limiter {
	mu.RLock()
	defer mu.RUnlock()
	return limiters[service]
}

func client() *http.Client {
	mu.RLock()
	defer mu.RUnlock()
	return httpClient
}

// waitForRateLimit blocks until the service limiter admits a request.
// Services without a limiter are not throttled.
func waitForRateLimit(ctx context.Context, service string) (time.Duration, error) {
	limiter := limiterFor(service)
	if limiter == nil || limiter.Allow() {
		return 0, nil
	}

	start := time.Now()
	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(attribute.String(tracing.AttrRateLimitService, service)),
	)
	err := limiter.Wait(ctx)
	wait := time.Since(start)
	tracing.SetAttributes(ctx,
		attribute.String(tracing.AttrRateLimitService, service),
		attribute.Int64(tracing.AttrRateLimitWaitMs, wait.Milliseconds()),
	)
	return wait, err
}

// DoRequest performs a rate-limited, monitored request against service.
func DoRequest(ctx context.Context, service, operation string, req *http.Request) (*http.Response, error) {
	hooks := getMonitoringHooks()
	hooks.request(service, operation)

	req.Header.Set("User-Agent", UserAgent())

	wait, err := waitForRateLimit(ctx, service)
	if err != nil {
		hooks.fail(service, "rate_limit_wait_error")
		return nil, err
	}
	if wait > 0 {
		hooks.rateLimit(service, wait)
	}

	start := time.Now()
	resp, err := client().Do(req.WithContext(ctx))
	success := err == nil && resp.StatusCode < 400
	hooks.response(service, operation, time.Since(start), success)
	if err != nil {
		hooks.fail(service, "request_error")
	}
	return resp, err
}
