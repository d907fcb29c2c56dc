// Package monitoring exposes Prometheus metrics and health endpoints.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/NERVsystems/osmtiles/pkg/osm"
)

const (
	// ServiceName is the metric namespace and health service name
	ServiceName = "osmtiles"
)

var (
	// Grid generation metrics
	GridGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmtiles_grid_generations_total",
			Help: "Total number of grid generations",
		},
		[]string{"status"},
	)

	GridGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "osmtiles_grid_generation_duration_seconds",
			Help:    "Grid generation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
		},
	)

	ElementsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "osmtiles_elements_processed_total",
			Help: "Total number of OSM elements rasterized",
		},
	)

	TilesPopulated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "osmtiles_tiles_populated_total",
			Help: "Total number of successful tile writes",
		},
	)

	GridCells = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "osmtiles_grid_cells",
			Help:    "Number of cells in generated grids",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		},
	)

	// Provider metrics
	ProviderFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmtiles_provider_fetches_total",
			Help: "Total number of provider fetches",
		},
		[]string{"provider", "status"},
	)

	ProviderFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmtiles_provider_fetch_duration_seconds",
			Help:    "Provider fetch duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"provider"},
	)

	// MCP request metrics
	MCPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmtiles_mcp_requests_total",
			Help: "Total number of MCP requests processed",
		},
		[]string{"tool", "status"},
	)

	MCPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmtiles_mcp_request_duration_seconds",
			Help:    "MCP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"tool"},
	)

	// External service metrics
	ExternalServiceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmtiles_external_service_requests_total",
			Help: "Total number of external service requests",
		},
		[]string{"service", "operation", "status"},
	)

	ExternalServiceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmtiles_external_service_request_duration_seconds",
			Help:    "External service request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"service", "operation"},
	)

	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmtiles_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting for rate limits",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"service"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmtiles_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmtiles_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "osmtiles_cache_size",
			Help: "Current number of items in cache",
		},
		[]string{"cache_type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmtiles_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "osmtiles_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osmtiles_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osmtiles_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)
)

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordGridGeneration records one finished generation
func RecordGridGeneration(duration time.Duration, elements, populated, cells int, success bool) {
	GridGenerationsTotal.WithLabelValues(status(success)).Inc()
	if !success {
		return
	}
	GridGenerationDuration.Observe(duration.Seconds())
	ElementsProcessed.Add(float64(elements))
	TilesPopulated.Add(float64(populated))
	GridCells.Observe(float64(cells))
}

func RecordProviderFetch(provider string, duration time.Duration, success bool) {
	ProviderFetchesTotal.WithLabelValues(provider, status(success)).Inc()
	ProviderFetchDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordMCPRequest(tool string, duration time.Duration, success bool) {
	MCPRequestsTotal.WithLabelValues(tool, status(success)).Inc()
	MCPRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordExternalServiceRequest(service, operation string, duration time.Duration, success bool) {
	ExternalServiceRequestsTotal.WithLabelValues(service, operation, status(success)).Inc()
	ExternalServiceRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func UpdateCacheSize(cacheType string, size int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(size))
}

func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// InstallOSMHooks routes osm request callbacks into these metrics
func InstallOSMHooks() {
	osm.SetMonitoringHooks(&osm.MonitoringHooks{
		OnResponse:  RecordExternalServiceRequest,
		OnRateLimit: RecordRateLimitWait,
		OnError: func(service, errorType string) {
			RecordError(service, errorType)
		},
	})
}
