package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// FormatForCLI formats an error for terminal output: the message, the cause
// when it carries more than the message, sorted details, a hint and the code.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ae := asAppError(err)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", ae.Message)

	if ae.Cause != nil && !strings.Contains(ae.Message, ae.Cause.Error()) {
		fmt.Fprintf(&sb, "  Cause: %s\n", ae.Cause.Error())
	}
	for _, k := range sortedKeys(ae.Details) {
		fmt.Fprintf(&sb, "  %s: %s\n", k, ae.Details[k])
	}
	if ae.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", ae.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", ae.Code)

	return sb.String()
}

// LogAttr returns err as a log attribute. AppErrors become an "error" group
// with code, message, retryable flag, cause and details; other errors a
// plain "error" string.
func LogAttr(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}

	var ae *AppError
	if !stderrors.As(err, &ae) {
		return slog.String("error", err.Error())
	}

	attrs := []any{
		slog.String("code", ae.Code),
		slog.String("message", ae.Message),
		slog.Bool("retryable", ae.Retryable),
	}
	if ae.Cause != nil {
		attrs = append(attrs, slog.String("cause", ae.Cause.Error()))
	}
	for _, k := range sortedKeys(ae.Details) {
		attrs = append(attrs, slog.String(k, ae.Details[k]))
	}
	return slog.Group("error", attrs...)
}

// asAppError returns the first AppError in the chain, or wraps err as internal.
func asAppError(err error) *AppError {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae
	}
	return Wrap(ErrCodeInternal, err)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
