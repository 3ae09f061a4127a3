package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo contains index health information as shown by `userindex status`.
type StatusInfo struct {
	Source      string    `json:"source"`
	Backend     string    `json:"backend"`
	Users       int       `json:"users"`
	Generation  uint64    `json:"generation"`
	CommittedAt time.Time `json:"committed_at"`

	// Ingestion runner
	Ingesting bool      `json:"ingesting"`
	Stage     string    `json:"stage,omitempty"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastRunAt time.Time `json:"last_run_at"`
	LastError string    `json:"last_error,omitempty"`

	// Cache
	CacheEntries int     `json:"cache_entries"`
	CacheHitRate float64 `json:"cache_hit_rate"`

	StoreSize     int64  `json:"store_size,omitempty"` // SQLite file size in bytes
	WatcherStatus string `json:"watcher_status"`       // "running", "stopped", "n/a"
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status"))

	_, _ = fmt.Fprintf(r.out, "  Source:       %s\n", orNone(info.Source))
	_, _ = fmt.Fprintf(r.out, "  Backend:      %s\n", info.Backend)
	_, _ = fmt.Fprintf(r.out, "  Users:        %d\n", info.Users)
	_, _ = fmt.Fprintf(r.out, "  Generation:   %d\n", info.Generation)
	if !info.CommittedAt.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last loaded:  %s\n", formatTime(info.CommittedAt))
	}
	if info.StoreSize > 0 {
		_, _ = fmt.Fprintf(r.out, "  Store size:   %s\n", FormatBytes(info.StoreSize))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Ingestion:")
	state := "idle"
	if info.Ingesting {
		state = "running"
		if info.Stage != "" {
			state += " (" + info.Stage + ")"
		}
	}
	_, _ = fmt.Fprintf(r.out, "    State:    %s\n", r.renderStatus(state))
	_, _ = fmt.Fprintf(r.out, "    Runs:     %d (%d failed)\n", info.Runs, info.Failures)
	if !info.LastRunAt.IsZero() {
		_, _ = fmt.Fprintf(r.out, "    Last run: %s\n", formatTime(info.LastRunAt))
	}
	if info.LastError != "" {
		_, _ = fmt.Fprintf(r.out, "    Error:    %s\n", r.styles.Error.Render(info.LastError))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Cache: %d entries, %.0f%% hit rate\n", info.CacheEntries, info.CacheHitRate*100)

	if info.WatcherStatus != "" && info.WatcherStatus != "n/a" {
		_, _ = fmt.Fprintf(r.out, "  Watcher: %s\n", r.renderStatus(info.WatcherStatus))
	}

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderStatus formats a status string with color.
func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "idle", "running":
		return r.styles.Success.Render(status)
	case "stopped":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return r.styles.Active.Render(status)
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
