package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
)

func TestRPCCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", apperrors.NotFound("id", "7"), ErrCodeNotFound},
		{"in progress", apperrors.New(apperrors.ErrCodeIngestionInProgress, "busy", nil), ErrCodeIngestionInProgress},
		{"ingestion failed", apperrors.IngestionError(errors.New("boom")), ErrCodeIngestionFailed},
		{"invalid input", apperrors.ValidationError("bad", nil), ErrCodeInvalidParams},
		{"empty query", apperrors.New(apperrors.ErrCodeQueryEmpty, "empty", nil), ErrCodeInvalidParams},
		{"search failed", apperrors.New(apperrors.ErrCodeSearchFailed, "index", nil), ErrCodeSearchFailed},
		{"wrapped not found", fmt.Errorf("lookup: %w", apperrors.NotFound("email", "a@b")), ErrCodeNotFound},
		{"plain error", errors.New("unexpected"), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RPCCode(tt.err))
		})
	}
}

func TestNewAppErrorResponse_CarriesApplicationError(t *testing.T) {
	// Given: a not-found error with a suggestion
	err := apperrors.NotFound("id", "42").WithSuggestion("Run 'userindex load' first")

	// When: mapping it to a response
	resp := NewAppErrorResponse("req-1", err)

	// Then: the RPC error carries the code, message and details
	require.NotNil(t, resp.Error)
	assert.Equal(t, "req-1", resp.ID)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "user with id 42 not found", resp.Error.Message)
	require.NotNil(t, resp.Error.Data)
	assert.Equal(t, apperrors.ErrCodeUserNotFound, resp.Error.Data.AppCode)
	assert.Equal(t, "Run 'userindex load' first", resp.Error.Data.Suggestion)
	assert.Equal(t, "42", resp.Error.Data.Details["id"])
}

func TestNewAppErrorResponse_PlainError(t *testing.T) {
	resp := NewAppErrorResponse("req-2", errors.New("disk on fire"))

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInternalError, resp.Error.Code)
	assert.Equal(t, "disk on fire", resp.Error.Message)
	assert.Nil(t, resp.Error.Data)
}

func TestError_RebuildsAppErrorAcrossTheWire(t *testing.T) {
	// Given: an error response encoded and decoded as JSON
	resp := NewAppErrorResponse("x", apperrors.EmptyBatch("users", "empty"))
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded struct {
		Error *Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotNil(t, decoded.Error)

	// When: rebuilding the application error
	ae := decoded.Error.AppError()

	// Then: code and details survive, and errors.Is matches through Unwrap
	require.NotNil(t, ae)
	assert.Equal(t, apperrors.ErrCodeEmptyBatch, ae.Code)
	assert.Equal(t, "empty", ae.Details["reason"])
	assert.True(t, apperrors.HasCode(decoded.Error, apperrors.ErrCodeEmptyBatch))
	assert.Contains(t, decoded.Error.Error(), "rpc error")
}

func TestError_WithoutData(t *testing.T) {
	e := &Error{Code: ErrCodeMethodNotFound, Message: "method not found: nope"}

	assert.Nil(t, e.AppError())
	assert.NoError(t, e.Unwrap())
	assert.Equal(t, "rpc error -32601: method not found: nope", e.Error())
}

func TestSearchParams_Validate(t *testing.T) {
	tests := []struct {
		name      string
		params    SearchParams
		wantErr   bool
		wantQuery string
		wantLimit int
	}{
		{"trims query", SearchParams{Query: "  john  ", Limit: 5}, false, "john", 5},
		{"negative limit becomes default", SearchParams{Query: "jo", Limit: -3}, false, "jo", 0},
		{"empty query", SearchParams{Query: ""}, true, "", 0},
		{"whitespace query", SearchParams{Query: " \t "}, true, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.params
			err := p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuery, p.Query)
			assert.Equal(t, tt.wantLimit, p.Limit)
		})
	}
}

func TestGetUserParams_Validate(t *testing.T) {
	assert.NoError(t, (&GetUserParams{ID: 1}).Validate())
	assert.Error(t, (&GetUserParams{ID: 0}).Validate())
	assert.Error(t, (&GetUserParams{ID: -5}).Validate())
}

func TestGetUserByEmailParams_Validate(t *testing.T) {
	p := GetUserByEmailParams{Email: "  John@X.com "}
	require.NoError(t, p.Validate())
	assert.Equal(t, "John@X.com", p.Email)

	assert.Error(t, (&GetUserByEmailParams{Email: "   "}).Validate())
}
