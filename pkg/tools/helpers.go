package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmtiles/pkg/core"
)

// InputParser decodes the request arguments into T.
func InputParser[T any](req mcp.CallToolRequest) (T, error) {
	var input T
	raw, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return input, core.NewError(core.ErrInvalidInput, "invalid input format").WithCause(err)
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return input, core.NewError(core.ErrInvalidInput, "failed to parse input").WithCause(err).
			WithGuidance("Check the argument names and types against the tool schema")
	}
	return input, nil
}

// WithParsedInput adapts a typed handler to an MCP tool handler. The handler's
// result is returned as JSON text; its error becomes an error result.
func WithParsedInput[T any](
	toolName string,
	handler func(ctx context.Context, input T, logger *slog.Logger) (any, error),
) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := slog.Default().With("tool", toolName)

		input, err := InputParser[T](req)
		if err != nil {
			logger.Warn("failed to parse input", "error", err)
			return ErrorResult(err), nil
		}

		result, err := handler(ctx, input, logger)
		if err != nil {
			logger.Warn("tool failed", "error", err, "code", core.CodeOf(err))
			return ErrorResult(err), nil
		}
		return JSONResult(result), nil
	}
}

// ErrorResult converts err into an MCP error result carrying its code and guidance.
func ErrorResult(err error) *mcp.CallToolResult {
	var e *core.Error
	if errors.As(err, &e) {
		return e.ToMCPResult()
	}
	return core.NewError(core.ErrInternal, err.Error()).ToMCPResult()
}

// JSONResult encodes v as the text content of a successful result.
func JSONResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return ErrorResult(fmt.Errorf("failed to encode result: %w", err))
	}
	return mcp.NewToolResultText(string(data))
}
