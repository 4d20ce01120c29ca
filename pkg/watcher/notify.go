package watcher

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// startNotify watches the log's directory and signals on any event for the
// log itself, so the loop can react before its next poll. Polling stays the
// source of truth; when the watch cannot be set up the channel never fires.
func (w *Watcher) startNotify(ctx context.Context) (<-chan struct{}, func()) {
	wake := make(chan struct{}, 1)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn().Err(err).Msg("Failed to create fsnotify watcher, falling back to polling.")
		return wake, func() {}
	}

	dir := filepath.Dir(w.cfg.Path)
	if err := fw.Add(dir); err != nil {
		w.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to watch log directory, falling back to polling.")
		fw.Close()
		return wake, func() {}
	}

	target := filepath.Clean(w.cfg.Path)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.Debug().Err(err).Msg("fsnotify watcher error.")
			case <-ctx.Done():
				return
			}
		}
	}()

	return wake, func() {
		fw.Close()
		<-done
	}
}
