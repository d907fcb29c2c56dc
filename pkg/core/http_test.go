package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

var quickRetry = RetryOptions{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2,
}

// newStatusServer answers with statuses in order, repeating the last one.
func newStatusServer(t *testing.T, header http.Header, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var count atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(count.Add(1))
		for k, v := range header {
			w.Header()[k] = v
		}
		w.WriteHeader(statuses[min(n, len(statuses))-1])
	}))
	t.Cleanup(server.Close)
	return server, &count
}

func getFactory(url string) RequestFactory {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func clientDoer(c *http.Client) Doer {
	return func(_ context.Context, req *http.Request) (*http.Response, error) {
		return c.Do(req)
	}
}

func TestWithRetry(t *testing.T) {
	tests := []struct {
		name     string
		statuses []int
		wantCode ErrorCode
		calls    int32
	}{
		{"ok first try", []int{http.StatusOK}, "", 1},
		{"recovers after server error", []int{http.StatusBadGateway, http.StatusOK}, "", 2},
		{"rate limited until exhausted", []int{http.StatusTooManyRequests}, ErrRateLimit, 3},
		{"unavailable", []int{http.StatusServiceUnavailable}, ErrServiceUnavailable, 3},
		{"bad request not retried", []int{http.StatusBadRequest}, ErrInvalidInput, 1},
		{"not found not retried", []int{http.StatusNotFound}, ErrNetwork, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, count := newStatusServer(t, nil, tt.statuses...)

			resp, err := WithRetry(context.Background(), "test", getFactory(server.URL), clientDoer(server.Client()), quickRetry)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("WithRetry() error = %v", err)
				}
				resp.Body.Close()
			} else if !IsKind(err, tt.wantCode) {
				t.Errorf("error = %v, want %s", err, tt.wantCode)
			}
			if got := count.Load(); got != tt.calls {
				t.Errorf("requests = %d, want %d", got, tt.calls)
			}
		})
	}
}

func TestWithRetryCapsRetryAfter(t *testing.T) {
	header := http.Header{"Retry-After": []string{"120"}}
	server, count := newStatusServer(t, header, http.StatusTooManyRequests, http.StatusOK)

	start := time.Now()
	resp, err := WithRetry(context.Background(), "test", getFactory(server.URL), clientDoer(server.Client()), quickRetry)
	if err != nil {
		t.Fatalf("WithRetry() error = %v", err)
	}
	resp.Body.Close()

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Retry-After was not capped by MaxDelay, took %v", elapsed)
	}
	if got := count.Load(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestWithRetryTransportError(t *testing.T) {
	var calls int
	do := func(context.Context, *http.Request) (*http.Response, error) {
		calls++
		return nil, errors.New("connection refused")
	}
	_, err := WithRetry(context.Background(), "test", getFactory("http://example.invalid"), do, quickRetry)
	if !IsKind(err, ErrNetwork) {
		t.Errorf("error = %v, want %s", err, ErrNetwork)
	}
	if calls != quickRetry.MaxAttempts {
		t.Errorf("calls = %d, want %d", calls, quickRetry.MaxAttempts)
	}
}

func TestWithRetryCancelled(t *testing.T) {
	server, _ := newStatusServer(t, nil, http.StatusInternalServerError)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	slow := quickRetry
	slow.InitialDelay = time.Hour
	_, err := WithRetry(ctx, "test", getFactory(server.URL), clientDoer(server.Client()), slow)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Duration
		wantOK bool
	}{
		{"3", 3 * time.Second, true},
		{" 0 ", 0, true},
		{"", 0, false},
		{"-1", 0, false},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := retryAfter(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("retryAfter(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
