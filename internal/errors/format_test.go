package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	// Given: a fatal error
	err := New(ErrCodeIndexFailed, "index build failed", nil).
		WithSuggestion("Run 'userindex load' to rebuild")

	// When: formatting for CLI
	result := FormatForCLI(err)

	// Then: contains error info
	assert.Contains(t, result, "Error: index build failed\n")
	assert.Contains(t, result, "  Hint: Run 'userindex load' to rebuild\n")
	assert.True(t, strings.HasSuffix(result, "  Code: ERR_504_INDEX_FAILED\n"))
}

func TestFormatForCLI_ShortFormat(t *testing.T) {
	// Given: a simple error
	err := NotFound("id", "9")

	// When: formatting for CLI
	result := FormatForCLI(err)

	// Then: is concise
	lines := strings.Split(strings.TrimSpace(result), "\n")
	assert.LessOrEqual(t, len(lines), 5, "Should be concise")
}

func TestFormatForCLI_DetailsSortedAndCauseDeduplicated(t *testing.T) {
	// Given: an ingestion failure wrapping an empty batch
	err := IngestionError(EmptyBatch("users", "empty")).WithDetail("attempts", "1")

	// When: formatting for CLI
	result := FormatForCLI(err)

	// Then: the cause is already in the message and is not repeated
	assert.NotContains(t, result, "Cause:")
	assert.Contains(t, result, "  attempts: 1\n")
	assert.Contains(t, result, "ERR_505_INGESTION_FAILED")
}

func TestFormatForCLI_ShowsDistinctCause(t *testing.T) {
	err := New(ErrCodeStoreFailed, "failed to open store", errors.New("disk I/O error"))

	result := FormatForCLI(err)

	assert.Contains(t, result, "  Cause: disk I/O error\n")
}

func TestFormatForCLI_StandardError(t *testing.T) {
	// Given: a wrapped standard error
	err := fmt.Errorf("dial: %w", errors.New("connection refused"))

	// When: formatting for CLI
	result := FormatForCLI(err)

	// Then: it is reported as internal
	assert.Contains(t, result, "Error: dial: connection refused\n")
	assert.Contains(t, result, ErrCodeInternal)
	assert.Empty(t, FormatForCLI(nil))
}

func TestLogAttr(t *testing.T) {
	logLine := func(err error) map[string]any {
		var buf bytes.Buffer
		slog.New(slog.NewJSONHandler(&buf, nil)).Info("ingest_failed", LogAttr(err))
		var out map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		return out
	}

	t.Run("app error becomes a group", func(t *testing.T) {
		// Given: a wrapped empty batch error
		err := fmt.Errorf("run: %w", IngestionError(EmptyBatch("users", "all_invalid")).WithDetail("attempts", "1"))

		// When: logging it
		group, ok := logLine(err)["error"].(map[string]any)

		// Then: the outer code, cause and details are present
		require.True(t, ok)
		assert.Equal(t, ErrCodeIngestionFailed, group["code"])
		assert.Contains(t, group["cause"], "ERR_402_EMPTY_BATCH")
		assert.Equal(t, false, group["retryable"])
		assert.Equal(t, "1", group["attempts"])
	})

	t.Run("standard error stays a string", func(t *testing.T) {
		assert.Equal(t, "boom", logLine(errors.New("boom"))["error"])
	})

	t.Run("nil is empty", func(t *testing.T) {
		assert.True(t, LogAttr(nil).Equal(slog.Attr{}))
	})
}
