package app

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/vk/monoxbridge/internal/ctxlog"
)

// watchConfig watches the config path and pushes the changed file onto
// reload. When the path is a single file its parent directory is watched
// instead, since editors replace files by rename. The returned watcher
// must be closed by the caller.
func (a *App) watchConfig(ctx context.Context, reload chan<- string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	target := filepath.Clean(a.cfg.ConfigPath)
	watchPath := target
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		watchPath = filepath.Dir(target)
	}
	if err := watcher.Add(watchPath); err != nil {
		watcher.Close()
		return nil, err
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Watching configuration for changes.", "path", watchPath)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Op.Has(fsnotify.Write | fsnotify.Create | fsnotify.Rename) {
					continue
				}
				// Directory watch picks up sibling files too; only the
				// configured file matters when a file was given.
				if watchPath != target && filepath.Clean(event.Name) != target {
					continue
				}
				select {
				case reload <- event.Name:
				default:
					// A reload is already pending.
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Config watcher error.", "error", err)
			}
		}
	}()
	return watcher, nil
}
