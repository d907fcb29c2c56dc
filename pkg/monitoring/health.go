package monitoring

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/NERVsystems/osmtiles/pkg/version"
)

// Health states
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ConnStatus is the last known state of one upstream dependency
type ConnStatus struct {
	Status    string `json:"status"` // "connected" or "error"
	Latency   int64  `json:"latency_ms,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// ServiceHealth is the body served by HealthHandler
type ServiceHealth struct {
	Service       string                `json:"service"`
	Version       string                `json:"version"`
	Status        string                `json:"status"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	StartTime     time.Time             `json:"start_time"`
	Connections   map[string]ConnStatus `json:"connections"`
	Metrics       map[string]any        `json:"metrics,omitempty"`
}

// HealthChecker aggregates provider availability into a service status.
type HealthChecker struct {
	serviceName string
	version     string
	startTime   time.Time
	mu          sync.RWMutex
	connections map[string]ConnStatus
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewHealthChecker creates a checker and starts system metric collection.
func NewHealthChecker(serviceName, version string) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())
	hc := &HealthChecker{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		connections: make(map[string]ConnStatus),
		ctx:         ctx,
		cancel:      cancel,
	}
	hc.wg.Add(1)
	go func() {
		defer hc.wg.Done()
		hc.collectSystemMetrics(ctx)
	}()
	return hc
}

// UpdateConnection records the outcome of a check against name
func (h *HealthChecker) UpdateConnection(name string, latency time.Duration, err error) {
	cs := ConnStatus{Status: "connected", Latency: latency.Milliseconds()}
	if err != nil {
		cs.Status = "error"
		cs.LastError = err.Error()
	}
	h.mu.Lock()
	h.connections[name] = cs
	h.mu.Unlock()
}

// Monitor runs check every interval until ctx is done or the checker is
// shut down, recording results under name.
func (h *HealthChecker) Monitor(ctx context.Context, name string, interval time.Duration, check func(context.Context) error) {
	ctx, stop := context.WithCancel(ctx)
	context.AfterFunc(h.ctx, stop)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer stop()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			start := time.Now()
			err := check(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				slog.Default().With("component", "health").Warn("dependency check failed", "name", name, "error", err)
			}
			h.UpdateConnection(name, time.Since(start), err)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// GetHealth computes the overall status: unhealthy when more than half of
// the dependencies fail, degraded when any fail.
func (h *HealthChecker) GetHealth() ServiceHealth {
	h.mu.RLock()
	connections := make(map[string]ConnStatus, len(h.connections))
	errorCount := 0
	for k, v := range h.connections {
		connections[k] = v
		if v.Status != "connected" {
			errorCount++
		}
	}
	h.mu.RUnlock()

	status := StatusHealthy
	switch {
	case errorCount > 0 && errorCount*2 > len(connections):
		status = StatusUnhealthy
	case errorCount > 0:
		status = StatusDegraded
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return ServiceHealth{
		Service:       h.serviceName,
		Version:       h.version,
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		StartTime:     h.startTime,
		Connections:   connections,
		Metrics: map[string]any{
			"goroutines":      runtime.NumGoroutine(),
			"memory_alloc_mb": m.Alloc / 1024 / 1024,
			"gc_runs":         m.NumGC,
			"version_info":    version.Info(),
		},
	}
}

// HealthHandler serves the health document; unhealthy maps to 503.
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()
		w.Header().Set("Content-Type", "application/json")
		if health.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			slog.Default().With("component", "health").Error("failed to encode health response", "error", err)
		}
	}
}

// LivenessHandler always reports alive while the process serves requests.
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"alive":  true,
			"uptime": time.Since(h.startTime).String(),
		})
	}
}

func (h *HealthChecker) collectSystemMetrics(ctx context.Context) {
	h.updateSystemMetrics()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.updateSystemMetrics()
		}
	}
}

func (h *HealthChecker) updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	GoRoutines.Set(float64(runtime.NumGoroutine()))
	MemoryUsage.Set(float64(m.Alloc))

	info := version.Info()
	SystemInfo.WithLabelValues(info["version"], info["go_version"], info["commit"], info["build_date"]).Set(1)
}

// Shutdown stops background collection and waits for monitors to exit.
func (h *HealthChecker) Shutdown() {
	h.cancel()
	h.wg.Wait()
}
