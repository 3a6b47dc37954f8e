package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce absorbs editor save storms (write + rename + chmod in
// quick succession) into one reload.
const watchDebounce = 250 * time.Millisecond

// ReloadFunc receives the freshly loaded configuration after a successful
// hot reload.
type ReloadFunc func(cfg *Config)

// Watcher observes the configuration file and reloads the singleton on
// change. A reload that fails validation is logged and discarded; the
// running configuration stays in place.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for the given configuration file.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	// Watch the directory, not the file: editors typically replace the
	// file, which would orphan a direct watch.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(path), err)
	}

	return &Watcher{
		path:    path,
		watcher: fsw,
		logger:  slog.Default().With("component", "config.watcher"),
	}, nil
}

// Watch blocks processing file events until the context is cancelled.
// onReload, when non-nil, is called after each successful reload.
func (w *Watcher) Watch(ctx context.Context, onReload ReloadFunc) error {
	defer w.watcher.Close()

	w.logger.Info("configuration watcher started", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("configuration watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.trigger(onReload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			// Keep watching despite transient errors.
			w.logger.Error("configuration watcher error", "error", err)
		}
	}
}

// trigger schedules a debounced reload.
func (w *Watcher) trigger(onReload ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watchDebounce, func() {
		if err := ReloadConfig(w.path); err != nil {
			w.logger.Error("configuration reload failed, keeping previous", "error", err)
			return
		}
		w.logger.Info("configuration reloaded", "path", w.path)
		if onReload != nil {
			onReload(GetConfig())
		}
	})
}
