package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// PollingWatcher detects changes to one file by comparing stat snapshots.
// Used when fsnotify is unavailable, for example on some network mounts.
type PollingWatcher struct {
	path     string
	interval time.Duration
	last     snapshot
	primed   bool
}

type snapshot struct {
	exists  bool
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a poller for path.
func NewPollingWatcher(path string, interval time.Duration) *PollingWatcher {
	return &PollingWatcher{path: path, interval: interval}
}

// Prime records the baseline snapshot. Run primes on its own when needed.
func (p *PollingWatcher) Prime() error {
	base, err := p.stat()
	if err != nil {
		return fmt.Errorf("baseline stat: %w", err)
	}
	p.last = base
	p.primed = true
	return nil
}

// Run polls until ctx is done, sending one event per observed change.
// It returns nil on cancellation.
func (p *PollingWatcher) Run(ctx context.Context, events chan<- FileEvent) error {
	if !p.primed {
		if err := p.Prime(); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ev, changed, err := p.check()
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// check compares the file against the previous snapshot.
func (p *PollingWatcher) check() (FileEvent, bool, error) {
	cur, err := p.stat()
	if err != nil {
		return FileEvent{}, false, err
	}
	prev := p.last
	p.last = cur

	ev := FileEvent{Path: p.path, Timestamp: time.Now()}
	switch {
	case !prev.exists && cur.exists:
		ev.Operation = OpCreate
	case prev.exists && !cur.exists:
		ev.Operation = OpDelete
	case cur.exists && (!cur.modTime.Equal(prev.modTime) || cur.size != prev.size):
		ev.Operation = OpModify
	default:
		return FileEvent{}, false, nil
	}
	return ev, true, nil
}

func (p *PollingWatcher) stat() (snapshot, error) {
	info, err := os.Stat(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return snapshot{}, nil
	}
	if err != nil {
		return snapshot{}, fmt.Errorf("stat %s: %w", p.path, err)
	}
	return snapshot{exists: true, modTime: info.ModTime(), size: info.Size()}, nil
}
