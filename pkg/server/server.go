// Package server exposes the tile grid tools over MCP stdio, HTTP+SSE and a
// small REST API.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/osmtiles/pkg/core"
	"github.com/NERVsystems/osmtiles/pkg/grid"
	"github.com/NERVsystems/osmtiles/pkg/tools"
	"github.com/NERVsystems/osmtiles/pkg/version"
)

// ServerName is the name of the MCP server
const ServerName = "osmtiles"

// Server wraps the MCP server with the tile grid tools registered.
type Server struct {
	srv          *mcpserver.MCPServer
	registry     *tools.Registry
	logger       *slog.Logger
	stopCh       chan struct{}
	doneCh       chan struct{}
	running      bool
	mu           sync.Mutex
	once         sync.Once
	ctxCancel    context.CancelFunc
	ctxGoroutine sync.Once
}

// NewServer creates an MCP server serving the tools of registry.
func NewServer(registry *tools.Registry, logger *slog.Logger) (*Server, error) {
	if registry == nil {
		return nil, core.NewError(core.ErrConfig, "tool registry is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("initializing tile grid MCP server",
		"name", ServerName,
		"version", version.BuildVersion,
		"tools", len(registry.GetToolNames()))

	srv := mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	registry.RegisterTools(srv)

	prompt := mcp.NewPrompt("tile_grid_system",
		mcp.WithPromptDescription("System prompt describing tile types and how to request grids"),
	)
	srv.AddPrompt(prompt, func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return mcp.NewGetPromptResult(
			"Tile Grid Instructions",
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(mcp.RoleAssistant, mcp.NewTextContent(SystemPrompt())),
			},
		), nil
	})

	return &Server{
		srv:      srv,
		registry: registry,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// SystemPrompt explains the tile vocabulary and the region forms to a model.
func SystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You can turn OpenStreetMap data into a typed tile grid with generate_tile_grid.\n")
	sb.WriteString("Give exactly one region: city, bbox as \"south,west,north,east\", or center with radius_km.\n")
	sb.WriteString("Call resolve_region first for large areas; grids above the inline limit only return statistics.\n")
	sb.WriteString("Tile types, highest priority wins when features overlap:\n")
	for _, t := range grid.AllBuiltin() {
		sb.WriteString("- ")
		sb.WriteString(t.Name())
		sb.WriteString(" (priority ")
		sb.WriteString(strconv.Itoa(t.Priority()))
		sb.WriteString(")\n")
	}
	return sb.String()
}

// Run serves MCP over stdin/stdout and blocks until the server stops.
func (s *Server) Run() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		defer close(s.doneCh)
		if err := mcpserver.ServeStdio(s.srv); err != nil && err != io.EOF {
			s.logger.Error("server error", "error", err)
		}
		s.Shutdown()
	}()

	<-s.stopCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	<-s.doneCh
	return nil
}

// RunWithContext is Run with shutdown on ctx cancellation.
func (s *Server) RunWithContext(ctx context.Context) error {
	s.ctxGoroutine.Do(func() {
		derived, cancel := context.WithCancel(ctx)
		s.ctxCancel = cancel

		go func() {
			select {
			case <-derived.Done():
				s.Shutdown()
			case <-s.stopCh:
			}
		}()
	})

	return s.Run()
}

// Shutdown signals Run to return. It does not block and is safe to call
// more than once.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.once.Do(func() {
		close(s.stopCh)
	})
	if s.ctxCancel != nil {
		s.ctxCancel()
	}
}

// WaitForShutdown blocks until the server has fully shut down.
func (s *Server) WaitForShutdown() {
	<-s.doneCh
}

// GetMCPServer returns the underlying MCP server for the HTTP transport
func (s *Server) GetMCPServer() *mcpserver.MCPServer {
	return s.srv
}

// Handler serves the tools as plain JSON over HTTP GET.
type Handler struct {
	logger   *slog.Logger
	registry *tools.Registry
}

// NewHandler creates a REST handler over registry
func NewHandler(registry *tools.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, registry: registry}
}

// numericParams are query parameters forwarded as numbers.
var numericParams = []string{"radius_km", "resolution", "tile_size", "timeout_seconds"}

// stringParams are query parameters forwarded verbatim.
var stringParams = []string{"city", "bbox", "center", "profile", "preset", "output"}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := requestIDFrom(r)

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var status int
	var err error
	switch strings.TrimPrefix(r.URL.Path, "/api") {
	case "/health":
		status = http.StatusOK
		writeJSON(w, h.logger, status, map[string]string{"status": "ok"})
	case "/grid":
		status, err = h.callTool(w, r, "generate_tile_grid", regionArgs(r))
	case "/region":
		status, err = h.callTool(w, r, "resolve_region", regionArgs(r))
	case "/classify":
		status, err = h.callTool(w, r, "classify_tags", classifyArgs(r))
	case "/features":
		status, err = h.callTool(w, r, "list_features", nil)
	case "/version":
		status, err = h.callTool(w, r, "get_version", nil)
	default:
		status = http.StatusNotFound
		http.NotFound(w, r)
	}

	duration := time.Since(start)
	if err != nil {
		h.logger.Error("request failed",
			"request_id", reqID,
			"path", r.URL.Path,
			"status", status,
			"duration", duration,
			"error", err)
		return
	}
	h.logger.Debug("request completed",
		"request_id", reqID,
		"path", r.URL.Path,
		"status", status,
		"duration", duration)
}

// regionArgs maps query parameters onto the generate_tile_grid and
// resolve_region arguments. Numbers that do not parse are passed as strings
// so the tool reports them as invalid input.
func regionArgs(r *http.Request) map[string]any {
	q := r.URL.Query()
	args := make(map[string]any)
	for _, name := range stringParams {
		if v := q.Get(name); v != "" {
			args[name] = v
		}
	}
	for _, name := range numericParams {
		v := q.Get(name)
		if v == "" {
			continue
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			args[name] = f
		} else {
			args[name] = v
		}
	}
	if v := q.Get("features"); v != "" {
		var features []any
		for f := range strings.SplitSeq(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				features = append(features, f)
			}
		}
		args["features"] = features
	}
	return args
}

// classifyArgs reads repeated tag=key=value parameters.
func classifyArgs(r *http.Request) map[string]any {
	tags := make(map[string]any)
	for _, kv := range r.URL.Query()["tag"] {
		k, v, _ := strings.Cut(kv, "=")
		if k = strings.TrimSpace(k); k != "" {
			tags[k] = strings.TrimSpace(v)
		}
	}
	return map[string]any{"tags": tags}
}

func (h *Handler) callTool(w http.ResponseWriter, r *http.Request, name string, args map[string]any) (int, error) {
	result, ok := h.registry.CallTool(r.Context(), name, args)
	if !ok {
		http.NotFound(w, r)
		return http.StatusNotFound, nil
	}

	content := ""
	for _, c := range result.Content {
		if t, ok := c.(mcp.TextContent); ok {
			content = t.Text
			break
		}
	}

	status := http.StatusOK
	if result.IsError {
		var payload struct {
			Code core.ErrorCode `json:"code"`
		}
		_ = json.Unmarshal([]byte(content), &payload)
		status = StatusForCode(payload.Code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, content); err != nil {
		return status, err
	}
	return status, nil
}

// StatusForCode maps an error code to the HTTP status the REST API returns.
func StatusForCode(code core.ErrorCode) int {
	switch code {
	case core.ErrInvalidInput, core.ErrConfig, core.ErrGeographic, core.ErrBounds:
		return http.StatusBadRequest
	case core.ErrRateLimit:
		return http.StatusTooManyRequests
	case core.ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	case core.ErrServiceTimeout:
		return http.StatusGatewayTimeout
	case core.ErrNetwork, core.ErrParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// generateRequestID generates a request ID from the current time
func generateRequestID() string {
	return time.Now().Format("20060102150405.000000000")
}
