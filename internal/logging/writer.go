package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	defaultMaxSizeMB = 10
	defaultMaxFiles  = 5
)

// RotatingWriter is an io.Writer that moves the log aside once it would grow
// past maxSize. Rotated files are numbered server.log.1 (newest) through
// server.log.<maxFiles> (oldest).
type RotatingWriter struct {
	path     string
	maxSize  int64
	maxFiles int

	mu         sync.Mutex
	file       *os.File
	size       int64
	syncWrites bool
}

// NewRotatingWriter opens path for appending, creating its directory.
// Non-positive limits fall back to 10 MB and 5 files. Every write is synced
// until SetImmediateSync(false).
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxSizeMB
	}
	if maxFiles <= 0 {
		maxFiles = defaultMaxFiles
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &RotatingWriter{
		path:       path,
		maxSize:    int64(maxSizeMB) << 20,
		maxFiles:   maxFiles,
		syncWrites: true,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// SetImmediateSync toggles fsync after each write.
func (w *RotatingWriter) SetImmediateSync(enabled bool) {
	w.mu.Lock()
	w.syncWrites = enabled
	w.mu.Unlock()
}

// Write appends p, rotating first when p would push the file past maxSize.
// A failed rotation is reported on stderr and the write goes to the
// current file.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err == nil && w.syncWrites {
		_ = w.file.Sync()
	}
	return n, err
}

// Sync flushes the current file.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close closes the current file. Later writes fail with os.ErrClosed.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// rotate shifts server.log.N to server.log.N+1, dropping the oldest, then
// moves the live file to server.log.1 and reopens. The caller holds mu.
func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	w.file = nil

	if err := os.Remove(w.numbered(w.maxFiles)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return w.reopenAfter(fmt.Errorf("failed to prune %s: %w", w.numbered(w.maxFiles), err))
	}
	for n := w.maxFiles - 1; n >= 1; n-- {
		if err := os.Rename(w.numbered(n), w.numbered(n+1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return w.reopenAfter(fmt.Errorf("failed to shift %s: %w", w.numbered(n), err))
		}
	}
	if err := os.Rename(w.path, w.numbered(1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return w.reopenAfter(fmt.Errorf("failed to rotate log file: %w", err))
	}
	return w.open()
}

// reopenAfter keeps the writer usable after a failed rotation.
func (w *RotatingWriter) reopenAfter(cause error) error {
	if err := w.open(); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (w *RotatingWriter) numbered(n int) string {
	return fmt.Sprintf("%s.%d", w.path, n)
}
