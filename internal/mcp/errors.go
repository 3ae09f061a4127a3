// Package mcp exposes the user index to AI clients as Model Context Protocol
// tools and resources.
package mcp

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
)

// MCP error codes. They match the daemon's JSON-RPC codes so both surfaces
// report the same failure the same way.
const (
	ErrCodeSearchFailed        = -32002
	ErrCodeTimeout             = -32003
	ErrCodeNotFound            = -32004
	ErrCodeIngestionFailed     = -32010
	ErrCodeIngestionInProgress = -32011

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrToolNotFound indicates the requested tool does not exist.
var ErrToolNotFound = errors.New("tool not found")

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var ae *apperrors.AppError
	if errors.As(err, &ae) {
		return mapAppError(ae)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Tool not found."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// mapAppError picks the code by application error code, then by category.
func mapAppError(ae *apperrors.AppError) *MCPError {
	message := ae.Message
	if ae.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ae.Message, ae.Suggestion)
	}

	code := ErrCodeInternalError
	switch ae.Code {
	case apperrors.ErrCodeUserNotFound:
		code = ErrCodeNotFound
	case apperrors.ErrCodeIngestionInProgress:
		code = ErrCodeIngestionInProgress
	case apperrors.ErrCodeIngestionFailed:
		code = ErrCodeIngestionFailed
	case apperrors.ErrCodeSearchFailed:
		code = ErrCodeSearchFailed
	case apperrors.ErrCodeSourceTimeout:
		code = ErrCodeTimeout
	default:
		if ae.Category == apperrors.CategoryValidation {
			code = ErrCodeInvalidParams
		}
	}
	return &MCPError{Code: code, Message: message}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}
