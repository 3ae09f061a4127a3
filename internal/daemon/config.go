// Package daemon serves the user index to local clients over JSON-RPC 2.0
// on a Unix socket. The serve command owns the engine and the ingestion
// runner; CLI commands connect instead of opening the store themselves.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default timeouts.
const (
	DefaultTimeout       = 30 * time.Second
	DefaultIngestTimeout = 2 * time.Minute
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	// Default: ~/.userindex/daemon.sock
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	// Default: ~/.userindex/daemon.pid
	PIDPath string

	// Timeout bounds reading a request and writing its response, and
	// client calls other than ingest.
	Timeout time.Duration

	// IngestTimeout bounds a client's ingest call, which spans retries.
	IngestTimeout time.Duration

	// ShutdownGracePeriod is the time to wait for graceful shutdown.
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns a Config rooted at ~/.userindex.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	dir := filepath.Join(home, ".userindex")

	return Config{
		SocketPath:          filepath.Join(dir, "daemon.sock"),
		PIDPath:             filepath.Join(dir, "daemon.pid"),
		Timeout:             DefaultTimeout,
		IngestTimeout:       DefaultIngestTimeout,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// WithSocketPath returns a copy using socketPath, with the PID file next to it.
func (c Config) WithSocketPath(socketPath string) Config {
	if socketPath == "" {
		return c
	}
	c.SocketPath = socketPath
	c.PIDPath = filepath.Join(filepath.Dir(socketPath), "daemon.pid")
	return c
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.IngestTimeout <= 0 {
		return fmt.Errorf("ingest timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	return nil
}

// EnsureDir creates the directories for the socket and PID files.
func (c Config) EnsureDir() error {
	socketDir := filepath.Dir(c.SocketPath)
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	pidDir := filepath.Dir(c.PIDPath)
	if pidDir != socketDir {
		if err := os.MkdirAll(pidDir, 0o755); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
	}
	return nil
}
