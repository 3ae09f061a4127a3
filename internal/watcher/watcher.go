package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates the file appeared.
	OpCreate Operation = iota
	// OpModify indicates the file was written.
	OpModify
	// OpDelete indicates the file was removed.
	OpDelete
	// OpRename indicates the file was renamed away.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Present reports whether the file exists after the operation.
func (op Operation) Present() bool {
	return op == OpCreate || op == OpModify
}

// FileEvent represents a change to the watched file.
type FileEvent struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the quiet period before a burst of events is emitted.
	// Default: 500ms
	DebounceWindow time.Duration

	// PollInterval is the interval for polling mode.
	// Default: 2s
	PollInterval time.Duration

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow: 500 * time.Millisecond,
		PollInterval:   2 * time.Second,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	return o
}

// SourceWatcher watches a single source file.
type SourceWatcher struct {
	path    string
	opts    Options
	active  atomic.Bool
	polling atomic.Bool
}

// New creates a watcher for path. The file need not exist yet, but its
// directory must when Run starts.
func New(path string, opts Options) (*SourceWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("watch path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	return &SourceWatcher{path: abs, opts: opts.WithDefaults()}, nil
}

// Path returns the absolute path being watched.
func (w *SourceWatcher) Path() string {
	return w.path
}

// Active reports whether Run is currently watching.
func (w *SourceWatcher) Active() bool {
	return w.active.Load()
}

// Polling reports whether the watcher fell back to polling.
func (w *SourceWatcher) Polling() bool {
	return w.polling.Load()
}

// Run watches until ctx is cancelled, calling onChange once per debounced
// create or modify. A deleted or renamed source is logged and otherwise
// ignored so the last committed generation keeps serving. onChange runs on
// the watcher goroutine; events arriving meanwhile are coalesced into the
// next call.
func (w *SourceWatcher) Run(ctx context.Context, onChange func(context.Context, FileEvent)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	raw := make(chan FileEvent, 64)
	errs := make(chan error, 8)

	if err := w.start(ctx, raw, errs); err != nil {
		return err
	}

	debouncer := NewDebouncer(w.opts.DebounceWindow)
	defer debouncer.Stop()

	w.active.Store(true)
	defer w.active.Store(false)

	slog.Info("watcher_started",
		slog.String("path", w.path),
		slog.Bool("polling", w.Polling()),
		slog.Duration("debounce", w.opts.DebounceWindow))

	for {
		select {
		case <-ctx.Done():
			slog.Info("watcher_stopped", slog.String("path", w.path))
			return nil
		case ev := <-raw:
			debouncer.Add(ev)
		case err := <-errs:
			slog.Warn("watcher_error", slog.String("path", w.path), slog.String("error", err.Error()))
		case batch, ok := <-debouncer.Output():
			if !ok {
				return nil
			}
			for _, ev := range batch {
				if !ev.Operation.Present() {
					slog.Info("watcher_source_gone",
						slog.String("path", ev.Path),
						slog.String("op", ev.Operation.String()))
					continue
				}
				slog.Debug("watcher_event",
					slog.String("path", ev.Path),
					slog.String("op", ev.Operation.String()))
				onChange(ctx, ev)
			}
		}
	}
}

// start launches the fsnotify loop, or the polling loop when fsnotify is
// unavailable or disabled.
func (w *SourceWatcher) start(ctx context.Context, raw chan<- FileEvent, errs chan<- error) error {
	if !w.opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			if err = fsw.Add(filepath.Dir(w.path)); err == nil {
				go w.fsnotifyLoop(ctx, fsw, raw, errs)
				return nil
			}
			_ = fsw.Close()
		}
		slog.Warn("watcher_fsnotify_unavailable",
			slog.String("path", w.path),
			slog.String("error", err.Error()))
	}

	w.polling.Store(true)
	poller := NewPollingWatcher(w.path, w.opts.PollInterval)
	if err := poller.Prime(); err != nil {
		return err
	}
	go func() {
		if err := poller.Run(ctx, raw); err != nil {
			select {
			case errs <- err:
			default:
			}
		}
	}()
	return nil
}

func (w *SourceWatcher) fsnotifyLoop(ctx context.Context, fsw *fsnotify.Watcher, raw chan<- FileEvent, errs chan<- error) {
	defer func() { _ = fsw.Close() }()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			op, ok := convertOp(event.Op)
			if !ok {
				continue
			}
			select {
			case raw <- FileEvent{Path: w.path, Operation: op, Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			select {
			case errs <- err:
			default:
			}
		}
	}
}

// convertOp maps an fsnotify operation. Chmod is ignored.
func convertOp(op fsnotify.Op) (Operation, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return OpCreate, true
	case op&fsnotify.Write != 0:
		return OpModify, true
	case op&fsnotify.Remove != 0:
		return OpDelete, true
	case op&fsnotify.Rename != 0:
		return OpRename, true
	default:
		return 0, false
	}
}
