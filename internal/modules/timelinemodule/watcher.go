package timelinemodule

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

// Watcher reloads the timeline when the manifest file changes on disk. The
// upstream generation pipeline rewrites the manifest after each run, so a
// write event is treated as "new timeline available".
type Watcher struct {
	logger   hclog.Logger
	manager  *Manager
	path     string
	debounce time.Duration
}

// NewWatcher creates a manifest file watcher for the given manager
func NewWatcher(logger hclog.Logger, manager *Manager, path string) *Watcher {
	return &Watcher{
		logger:   logger.Named("manifest-watcher"),
		manager:  manager,
		path:     path,
		debounce: 500 * time.Millisecond,
	}
}

// Run watches the manifest until the context is cancelled. Events are
// debounced because generators often write the file in several chunks.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory rather than the file itself so atomic
	// rename-into-place updates are still observed.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.logger.Info("watching manifest", "path", w.path)

	var pending *time.Timer
	var pendingC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(w.debounce)
				pendingC = pending.C
			} else {
				pending.Reset(w.debounce)
			}

		case <-pendingC:
			pending = nil
			pendingC = nil
			if _, err := w.manager.Reload(); err != nil {
				w.logger.Warn("manifest reload failed", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("manifest watcher error", "error", err)
		}
	}
}
