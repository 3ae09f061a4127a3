package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"not found", apperrors.NotFound("id", "9"), ErrCodeNotFound, "user with id 9 not found"},
		{"wrapped not found", fmt.Errorf("lookup: %w", apperrors.NotFound("email", "a@b")), ErrCodeNotFound, "user with email a@b not found"},
		{"in progress", apperrors.New(apperrors.ErrCodeIngestionInProgress, "ingestion already running", nil), ErrCodeIngestionInProgress, "ingestion already running"},
		{"ingestion failed", apperrors.IngestionError(errors.New("boom")), ErrCodeIngestionFailed, "ingestion failed: boom"},
		{"search failed", apperrors.New(apperrors.ErrCodeSearchFailed, "index closed", nil), ErrCodeSearchFailed, "index closed"},
		{"validation", apperrors.ValidationError("email must not be empty", nil), ErrCodeInvalidParams, "email must not be empty"},
		{"source timeout", apperrors.New(apperrors.ErrCodeSourceTimeout, "slow", nil), ErrCodeTimeout, "slow"},
		{"store failure", apperrors.New(apperrors.ErrCodeStoreFailed, "disk", nil), ErrCodeInternalError, "disk"},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout, "Request timed out."},
		{"canceled", context.Canceled, ErrCodeTimeout, "Request was canceled."},
		{"tool not found", ErrToolNotFound, ErrCodeMethodNotFound, "Tool not found."},
		{"unknown", errors.New("whatever"), ErrCodeInternalError, "Internal server error."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantMsg, got.Message)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_AppendsSuggestion(t *testing.T) {
	err := apperrors.NotFound("id", "9").WithSuggestion("Run load_users first.")

	got := MapError(err)

	assert.Equal(t, "user with id 9 not found Run load_users first.", got.Message)
}

func TestMapError_PassesThroughMCPError(t *testing.T) {
	orig := NewInvalidParamsError("bad")

	assert.Same(t, orig, MapError(fmt.Errorf("wrap: %w", orig)))
}

func TestMCPError_Error(t *testing.T) {
	assert.Equal(t, "MCP error -32601: Tool 'nope' not found.", NewMethodNotFoundError("nope").Error())
	assert.Equal(t, ErrCodeNotFound, NewResourceNotFoundError("userindex://users/1").Code)
}
