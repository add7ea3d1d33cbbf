package actions

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/noveldeck/noveldeck-server/internal/logger"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher reloads the registry when its actions file changes on disk.
// Editors write files in bursts, so events are debounced before the
// reload fires.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	log      *logger.Logger
}

// NewWatcher creates a watcher for the registry's actions file. The
// parent directory is watched rather than the file itself so atomic
// rename-into-place saves are seen.
func NewWatcher(registry *Registry, log *logger.Logger) (*Watcher, error) {
	if registry.Path() == "" {
		return nil, fmt.Errorf("actions watcher: no actions file configured")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(registry.Path())); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{registry: registry, watcher: fw, log: log}, nil
}

// Start watches until ctx is canceled.
func (w *Watcher) Start(ctx context.Context) {
	defer w.watcher.Close()

	target := filepath.Clean(w.registry.Path())
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				if err := w.registry.Reload(); err != nil {
					w.log.Warn("actions reload failed, keeping previous set", "error", err)
					return
				}
				w.log.Info("actions reloaded", "path", target)
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("actions watcher error", "error", err)
		}
	}
}
