package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/monitoring"
)

// HTTPTransportConfig holds configuration for the HTTP transport
type HTTPTransportConfig struct {
	Addr           string  `json:"addr"`
	BaseURL        string  `json:"base_url"`
	AuthToken      string  `json:"auth_token"` // bearer token; empty disables auth
	SSEEndpoint    string  `json:"sse_endpoint"`
	MsgEndpoint    string  `json:"msg_endpoint"`
	RateLimit      float64 `json:"rate_limit"` // requests per second per IP, 0 disables
	RateBurst      int     `json:"rate_burst"`
	MaxRequestSize int64   `json:"max_request_size"`
	TLSCertFile    string  `json:"tls_cert_file"`
	TLSKeyFile     string  `json:"tls_key_file"`
}

// DefaultHTTPTransportConfig returns the defaults
func DefaultHTTPTransportConfig() HTTPTransportConfig {
	return HTTPTransportConfig{
		Addr:           ":7082",
		SSEEndpoint:    "/sse",
		MsgEndpoint:    "/message",
		RateLimit:      10,
		RateBurst:      20,
		MaxRequestSize: 1 << 20,
	}
}

// HTTPTransport serves MCP over HTTP+SSE next to the REST API, health
// checks and Prometheus metrics.
type HTTPTransport struct {
	config        HTTPTransportConfig
	logger        *slog.Logger
	sseServer     *mcpserver.SSEServer
	rest          http.Handler
	mux           *http.ServeMux
	httpSrv       *http.Server
	rateLimiter   *RateLimiter
	healthChecker *monitoring.HealthChecker
	mu            sync.RWMutex
}

// NewHTTPTransport creates the transport. rest may be nil to disable /api/.
func NewHTTPTransport(mcpServer *mcpserver.MCPServer, rest http.Handler, config HTTPTransportConfig, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultHTTPTransportConfig()
	if config.SSEEndpoint == "" {
		config.SSEEndpoint = defaults.SSEEndpoint
	}
	if config.MsgEndpoint == "" {
		config.MsgEndpoint = defaults.MsgEndpoint
	}
	if config.MaxRequestSize <= 0 {
		config.MaxRequestSize = defaults.MaxRequestSize
	}
	if config.AuthToken != "" {
		if err := ValidateAuthToken(config.AuthToken); err != nil {
			logger.Warn("weak authentication token", "error", err)
		}
	}

	t := &HTTPTransport{
		config: config,
		logger: logger.With("component", "http_transport"),
		sseServer: mcpserver.NewSSEServer(
			mcpServer,
			mcpserver.WithSSEEndpoint(config.SSEEndpoint),
			mcpserver.WithMessageEndpoint(config.MsgEndpoint),
			mcpserver.WithBaseURL(config.BaseURL),
		),
		rest: rest,
		mux:  http.NewServeMux(),
	}
	if config.RateLimit > 0 {
		t.rateLimiter = NewRateLimiter(rate.Limit(config.RateLimit), max(config.RateBurst, 1))
	}
	t.setupRoutes()
	return t
}

// SetHealthChecker sets the health checker behind /health and /live
func (t *HTTPTransport) SetHealthChecker(hc *monitoring.HealthChecker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.healthChecker = hc
}

func (t *HTTPTransport) setupRoutes() {
	t.mux.HandleFunc("/", t.handleServiceDiscovery)
	t.mux.HandleFunc("/health", t.handleHealth)
	t.mux.HandleFunc("/live", t.handleLive)
	t.mux.Handle("/metrics", promhttp.Handler())

	t.mux.Handle(t.config.SSEEndpoint, t.protected(t.sseServer.SSEHandler()))
	t.mux.Handle(t.config.MsgEndpoint, t.protected(t.sseServer.MessageHandler()))
	if t.rest != nil {
		t.mux.Handle("/api/", t.protected(t.rest))
	}
}

// protected applies authentication and rate limiting.
func (t *HTTPTransport) protected(next http.Handler) http.Handler {
	h := t.authMiddleware(next)
	if t.rateLimiter != nil {
		h = t.rateLimiter.Middleware(h)
	}
	return h
}

func (t *HTTPTransport) authMiddleware(next http.Handler) http.Handler {
	if t.config.AuthToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, reason := authenticateBearer(r.Header.Get("Authorization"), t.config.AuthToken); !ok {
			t.logger.Warn("authentication failed",
				"remote_addr", getIP(r),
				"path", r.URL.Path,
				"reason", reason)
			monitoring.RecordError("http", "auth_failed")
			w.Header().Set("WWW-Authenticate", "Bearer")
			t.writeJSONRPCError(w, http.StatusUnauthorized, -32001, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t *HTTPTransport) handleServiceDiscovery(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseURL := t.config.BaseURL
	if baseURL == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}

	endpoints := map[string]string{
		"sse":     baseURL + t.config.SSEEndpoint,
		"message": baseURL + t.config.MsgEndpoint,
		"metrics": baseURL + "/metrics",
	}
	if t.rest != nil {
		endpoints["grid"] = baseURL + "/api/grid"
	}
	writeJSON(w, t.logger, http.StatusOK, map[string]any{
		"service":   ServerName,
		"transport": "HTTP+SSE",
		"endpoints": endpoints,
		"auth":      map[string]any{"required": t.config.AuthToken != ""},
	})
}

func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	t.mu.RLock()
	hc := t.healthChecker
	t.mu.RUnlock()

	if hc != nil {
		hc.HealthHandler()(w, r)
		return
	}
	writeJSON(w, t.logger, http.StatusOK, map[string]any{"status": "ok"})
}

func (t *HTTPTransport) handleLive(w http.ResponseWriter, r *http.Request) {
	t.mu.RLock()
	hc := t.healthChecker
	t.mu.RUnlock()

	if hc != nil {
		hc.LivenessHandler()(w, r)
		return
	}
	writeJSON(w, t.logger, http.StatusOK, map[string]any{"alive": true})
}

func (t *HTTPTransport) writeJSONRPCError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, t.logger, status, map[string]any{
		"jsonrpc": "2.0",
		"id":      nil,
		"error":   map[string]any{"code": code, "message": message},
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// Handler returns the full middleware chain around the routes.
func (t *HTTPTransport) Handler() http.Handler {
	handler := http.Handler(t.mux)
	handler = TracingMiddleware()(handler)
	handler = LoggingMiddleware(t.logger)(handler)
	handler = SecurityHeaders(handler)
	return RequestSizeLimiter(t.config.MaxRequestSize)(handler)
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a
// graceful shutdown.
func (t *HTTPTransport) Start() error {
	t.mu.Lock()
	if t.httpSrv != nil {
		t.mu.Unlock()
		return core.NewError(core.ErrInternal, "HTTP transport already started").
			WithGuidance("Stop the running transport before starting it again")
	}

	// WriteTimeout stays zero because SSE streams are long lived.
	t.httpSrv = &http.Server{
		Addr:              t.config.Addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	srv := t.httpSrv
	tls := t.config.TLSCertFile != "" && t.config.TLSKeyFile != ""
	t.mu.Unlock()

	t.logger.Info("starting HTTP transport",
		"addr", t.config.Addr,
		"sse_endpoint", t.config.SSEEndpoint,
		"message_endpoint", t.config.MsgEndpoint,
		"auth", t.config.AuthToken != "",
		"rate_limit", t.config.RateLimit,
		"tls", tls)

	if tls {
		return srv.ListenAndServeTLS(t.config.TLSCertFile, t.config.TLSKeyFile)
	}
	return srv.ListenAndServe()
}

// Shutdown gracefully stops the transport
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rateLimiter != nil {
		t.rateLimiter.Stop()
	}
	if t.httpSrv == nil {
		return nil
	}

	t.logger.Info("shutting down HTTP transport")
	if err := t.sseServer.Shutdown(ctx); err != nil {
		t.logger.Error("failed to shut down SSE server", "error", err)
	}
	err := t.httpSrv.Shutdown(ctx)
	t.httpSrv = nil
	return err
}

// GetConfig returns the transport configuration
func (t *HTTPTransport) GetConfig() HTTPTransportConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}
