// Package core provides shared error and transport utilities for tile grid generation.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorCode identifies the kind of failure
type ErrorCode string

// Standard error codes
const (
	// Generation pipeline errors
	ErrParse          ErrorCode = "PARSE_ERROR"
	ErrBounds         ErrorCode = "BOUNDS_ERROR"
	ErrConfig         ErrorCode = "CONFIG_ERROR"
	ErrGeographic     ErrorCode = "GEOGRAPHIC_ERROR"
	ErrGridGeneration ErrorCode = "GRID_GENERATION_ERROR"

	// Service errors
	ErrNetwork            ErrorCode = "NETWORK_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrInternal           ErrorCode = "INTERNAL_ERROR"
)

// Error is the coded error returned across package boundaries
type Error struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Guidance string    `json:"guidance,omitempty"`
	cause    error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	if e.Guidance != "" {
		msg += ". " + e.Guidance
	}
	return msg
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error carrying the same code, so sentinel comparisons work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// NewError creates a new Error with the given code and message
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new Error with a formatted message
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WithGuidance adds guidance information to the error
func (e *Error) WithGuidance(guidance string) *Error {
	e.Guidance = guidance
	return e
}

// WithCause attaches the error that triggered this one
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// Kind sentinels for errors.Is
var (
	ParseError          = &Error{Code: ErrParse}
	BoundsError         = &Error{Code: ErrBounds}
	ConfigError         = &Error{Code: ErrConfig}
	GeographicError     = &Error{Code: ErrGeographic}
	GridGenerationError = &Error{Code: ErrGridGeneration}
	NetworkError        = &Error{Code: ErrNetwork}
)

// CodeOf returns the code of the first *Error in the chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}

// IsKind reports whether err carries the given code
func IsKind(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// ToMCPResult converts the error to an MCP tool result
func (e *Error) ToMCPResult() *mcp.CallToolResult {
	errorJSON, err := json.Marshal(struct {
		*Error
		Detail string `json:"detail,omitempty"`
	}{e, causeString(e.cause)})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ERROR: %s - %s", e.Code, e.Message))
	}
	return mcp.NewToolResultError(string(errorJSON))
}

func causeString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ServiceError creates an error for external service failures
func ServiceError(service string, statusCode int, message string) *Error {
	var code ErrorCode
	var guidance string

	switch statusCode {
	case http.StatusTooManyRequests:
		code = ErrRateLimit
		guidance = "The service is rate-limited. Please try again in a few moments."
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = ErrServiceTimeout
		guidance = "The request timed out. Try a smaller region or fewer features."
	case http.StatusBadRequest:
		code = ErrInvalidInput
		guidance = "The query was rejected. Check the feature tags and bounding box."
	case http.StatusServiceUnavailable:
		code = ErrServiceUnavailable
		guidance = "The service is temporarily unavailable. Please try again later."
	default:
		code = ErrNetwork
		guidance = "Please try again later or use a different provider."
	}

	return NewError(code, fmt.Sprintf("%s service error: %s", service, message)).
		WithGuidance(guidance)
}
