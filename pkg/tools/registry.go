// Package tools exposes tile grid generation as MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/osmtiles/pkg/generator"
	"github.com/NERVsystems/osmtiles/pkg/grid"
	"github.com/NERVsystems/osmtiles/pkg/monitoring"
	"github.com/NERVsystems/osmtiles/pkg/provider"
	"github.com/NERVsystems/osmtiles/pkg/tracing"
)

// Handler is the signature of an MCP tool handler
type Handler = server.ToolHandlerFunc

// Registry holds the tool definitions and the services they call.
type Registry struct {
	logger    *slog.Logger
	provider  provider.Provider
	generator *generator.Generator
	fillable  map[grid.TileType]bool
}

// NewRegistry creates a registry whose tools fetch from p and rasterize with g.
func NewRegistry(logger *slog.Logger, p provider.Provider, g *generator.Generator) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	fillable := make(map[grid.TileType]bool)
	for _, t := range generator.FillTypes() {
		fillable[t] = true
	}
	return &Registry{
		logger:    logger.With("component", "tools"),
		provider:  p,
		generator: g,
		fillable:  fillable,
	}
}

// ToolDefinition pairs a tool with its handler.
type ToolDefinition struct {
	Name        string
	Description string
	Tool        mcp.Tool
	Handler     Handler
}

// GetToolDefinitions returns every tool.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "generate_tile_grid",
			Description: "Generate a typed tile grid for a city, bounding box or center and radius",
			Tool:        GenerateTileGridTool(),
			Handler:     WithParsedInput("generate_tile_grid", r.handleGenerateTileGrid),
		},
		{
			Name:        "resolve_region",
			Description: "Preview the bounding box and grid size for a region",
			Tool:        ResolveRegionTool(),
			Handler:     WithParsedInput("resolve_region", r.handleResolveRegion),
		},
		{
			Name:        "classify_tags",
			Description: "Classify OSM tags into a tile type",
			Tool:        ClassifyTagsTool(),
			Handler:     WithParsedInput("classify_tags", r.handleClassifyTags),
		},
		{
			Name:        "list_features",
			Description: "List features, presets, tile types and limits",
			Tool:        ListFeaturesTool(),
			Handler:     WithParsedInput("list_features", r.handleListFeatures),
		},
		{
			Name:        "get_version",
			Description: "Get version information",
			Tool:        GetVersionTool(),
			Handler:     WithParsedInput("get_version", handleGetVersion),
		},
	}
}

// GetToolNames returns the tool names in registration order.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}

// CallTool runs the named tool with args outside of an MCP session. It
// returns nil and false when no tool has that name.
func (r *Registry) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, bool) {
	for _, def := range r.GetToolDefinitions() {
		if def.Name != name {
			continue
		}
		var req mcp.CallToolRequest
		req.Params.Name = name
		req.Params.Arguments = args
		// Handlers built by WithParsedInput never return an error.
		result, _ := r.wrapWithTracing(name, def.Handler)(ctx, req)
		return result, true
	}
	return nil, false
}

// RegisterTools adds every tool to the MCP server.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		r.logger.Info("registering tool", "name", def.Name)
		mcpServer.AddTool(def.Tool, r.wrapWithTracing(def.Name, def.Handler))
	}
}

// wrapWithTracing runs handler inside a span and records the request metrics.
// Tool failures are reported through IsError, so both paths count.
func (r *Registry) wrapWithTracing(toolName string, handler Handler) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("mcp.tool.%s", toolName),
			trace.WithAttributes(attribute.String(tracing.AttrMCPToolName, toolName)),
		)
		defer span.End()

		start := time.Now()
		result, err := handler(ctx, req)
		duration := time.Since(start)

		success := err == nil && (result == nil || !result.IsError)
		status := tracing.StatusSuccess
		if !success {
			status = tracing.StatusError
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Error, "tool returned an error result")
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}

		resultSize := 0
		if result != nil && result.Content != nil {
			if data, marshalErr := json.Marshal(result.Content); marshalErr == nil {
				resultSize = len(data)
			}
		}
		span.SetAttributes(
			attribute.String(tracing.AttrMCPToolStatus, status),
			attribute.Int64("mcp.tool.duration_ms", duration.Milliseconds()),
			attribute.Int("mcp.result.size", resultSize),
		)
		monitoring.RecordMCPRequest(toolName, duration, success)

		r.logger.Debug("tool executed",
			"tool", toolName,
			"duration", duration,
			"status", status,
			"result_size", resultSize,
		)
		return result, err
	}
}
