// Package watcher reloads a file-backed user source when the file changes.
//
// The watcher observes the source file's directory with fsnotify, so editors
// that save by writing a temp file and renaming it over the original are
// seen too, and falls back to polling the file's size and modification time
// when fsnotify is unavailable (network mounts, some container volumes).
// Bursts of events are debounced into one reload.
//
// Usage:
//
//	w, err := watcher.New("/data/users.json", watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	return w.Run(ctx, func(ctx context.Context, ev watcher.FileEvent) {
//	    _, _ = runner.Run(ctx, nil)
//	})
package watcher
