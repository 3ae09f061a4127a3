package daemon

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/userindex/internal/cache"
	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/index"
	"github.com/Aman-CERP/userindex/internal/store"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing           = "ping"
	MethodStatus         = "status"
	MethodIngest         = "ingest"
	MethodSearch         = "search"
	MethodGetUser        = "get_user"
	MethodGetUserByEmail = "get_user_by_email"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Custom error codes for daemon-specific errors.
const (
	ErrCodeSearchFailed        = -32002
	ErrCodeNotFound            = -32004
	ErrCodeIngestionFailed     = -32010
	ErrCodeIngestionInProgress = -32011
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData carries the application error behind an RPC error so clients
// can rebuild it.
type ErrorData struct {
	AppCode    string            `json:"app_code"`
	Suggestion string            `json:"suggestion,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// AppError rebuilds the application error, or returns nil when the
// response carries none.
func (e *Error) AppError() *apperrors.AppError {
	if e.Data == nil || e.Data.AppCode == "" {
		return nil
	}
	ae := apperrors.New(e.Data.AppCode, e.Message, nil)
	if e.Data.Suggestion != "" {
		ae.Suggestion = e.Data.Suggestion
	}
	for k, v := range e.Data.Details {
		ae = ae.WithDetail(k, v)
	}
	return ae
}

// Unwrap lets errors.Is match on the application code.
func (e *Error) Unwrap() error {
	if ae := e.AppError(); ae != nil {
		return ae
	}
	return nil
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	return Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// NewAppErrorResponse maps an application error to its RPC error code.
func NewAppErrorResponse(id string, err error) Response {
	resp := NewErrorResponse(id, RPCCode(err), err.Error())
	if code := apperrors.GetCode(err); code != "" {
		data := &ErrorData{AppCode: code}
		var ae *apperrors.AppError
		if errors.As(err, &ae) {
			resp.Error.Message = ae.Message
			data.Suggestion = ae.Suggestion
			data.Details = ae.Details
		}
		resp.Error.Data = data
	}
	return resp
}

// RPCCode maps an error to a JSON-RPC error code.
func RPCCode(err error) int {
	switch {
	case apperrors.HasCode(err, apperrors.ErrCodeUserNotFound):
		return ErrCodeNotFound
	case apperrors.HasCode(err, apperrors.ErrCodeIngestionInProgress):
		return ErrCodeIngestionInProgress
	case apperrors.HasCode(err, apperrors.ErrCodeIngestionFailed):
		return ErrCodeIngestionFailed
	case apperrors.HasCode(err, apperrors.ErrCodeInvalidInput),
		apperrors.HasCode(err, apperrors.ErrCodeQueryEmpty):
		return ErrCodeInvalidParams
	case apperrors.HasCode(err, apperrors.ErrCodeSearchFailed):
		return ErrCodeSearchFailed
	default:
		return ErrCodeInternalError
	}
}

// SearchParams are the parameters for the search method.
type SearchParams struct {
	// Query is the free text to match (required).
	Query string `json:"query"`
	// Limit caps the result count; 0 selects the server default.
	Limit int `json:"limit,omitempty"`
}

// Validate checks that required fields are present.
func (p *SearchParams) Validate() error {
	p.Query = strings.TrimSpace(p.Query)
	if p.Query == "" {
		return fmt.Errorf("query is required")
	}
	if p.Limit < 0 {
		p.Limit = 0
	}
	return nil
}

// SearchResult is the response to a search request.
type SearchResult struct {
	Query string        `json:"query"`
	Count int           `json:"count"`
	Users []*store.User `json:"users"`
}

// GetUserParams are the parameters for the get_user method.
type GetUserParams struct {
	ID int64 `json:"id"`
}

// Validate checks that the id is positive.
func (p *GetUserParams) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("id must be positive, got %d", p.ID)
	}
	return nil
}

// GetUserByEmailParams are the parameters for the get_user_by_email method.
type GetUserByEmailParams struct {
	Email string `json:"email"`
}

// Validate checks that the email is present.
func (p *GetUserByEmailParams) Validate() error {
	p.Email = strings.TrimSpace(p.Email)
	if p.Email == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}

// IngestResult is the response to an ingest request.
type IngestResult struct {
	Loaded   int                   `json:"loaded"`
	Skipped  int                   `json:"skipped"`
	Attempts int                   `json:"attempts"`
	Duration string                `json:"duration"`
	Source   string                `json:"source"`
	Skips    []index.SkippedRecord `json:"skips,omitempty"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running     bool               `json:"running"`
	PID         int                `json:"pid"`
	Uptime      string             `json:"uptime"`
	Source      string             `json:"source"`
	Backend     string             `json:"backend"`
	Users       int                `json:"users"`
	Generation  uint64             `json:"generation"`
	CommittedAt time.Time          `json:"committed_at"`
	Ingestion   index.RunnerStatus `json:"ingestion"`
	Cache       cache.Stats        `json:"cache"`
	Watching    bool               `json:"watching"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
