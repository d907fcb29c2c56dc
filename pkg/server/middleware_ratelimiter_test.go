package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Second), 1)
	t.Cleanup(rl.Stop)

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		remote string
		want   int
	}{
		{"first request passes", "1.2.3.4:1234", http.StatusOK},
		{"immediate repeat is limited", "1.2.3.4:1234", http.StatusTooManyRequests},
		{"other client has own budget", "5.6.7.8:1234", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/grid", nil)
			req.RemoteAddr = tt.remote
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
				t.Error("missing Retry-After header")
			}
		})
	}
}

func TestRateLimiterEvictsLeastRecent(t *testing.T) {
	rl := newRateLimiter(rate.Every(time.Minute), 1, 2)
	t.Cleanup(rl.Stop)

	rl.getVisitor("1.1.1.1")
	rl.getVisitor("2.2.2.2")
	rl.getVisitor("1.1.1.1")
	rl.getVisitor("3.3.3.3")

	if rl.visitors.Contains("2.2.2.2") {
		t.Error("least recently seen visitor was not evicted")
	}
	if !rl.visitors.Contains("1.1.1.1") || !rl.visitors.Contains("3.3.3.3") {
		t.Error("expected recent visitors to remain")
	}
	if n := rl.visitors.Len(); n != 2 {
		t.Errorf("expected 2 visitors, got %d", n)
	}

	// Stop is idempotent.
	rl.Stop()
}

func TestRateLimiterRemoveStale(t *testing.T) {
	rl := newRateLimiter(rate.Every(time.Minute), 1, 10)
	t.Cleanup(rl.Stop)

	rl.getVisitor("1.1.1.1")
	cutoff := time.Now().Add(time.Millisecond)
	time.Sleep(2 * time.Millisecond)
	rl.getVisitor("2.2.2.2")

	rl.removeStale(cutoff)

	if rl.visitors.Contains("1.1.1.1") {
		t.Error("stale visitor was kept")
	}
	if !rl.visitors.Contains("2.2.2.2") {
		t.Error("fresh visitor was removed")
	}
}
