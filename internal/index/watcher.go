package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/strata/internal/model"
	"github.com/starford/strata/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "indexed" or "removed".
type EventCallback func(kind string, layer string)

// Watch starts an fsnotify watcher on the model's layers directory and
// processes layer file changes until ctx is cancelled. It calls cb (if
// non-nil) after each successful index mutation.
//
// Rename events fire on the old path only, so they schedule a short
// debounced reconciliation pass (a full Sync) to catch the new path.
func Watch(ctx context.Context, db *DB, store storage.Provider, layersDir string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(layersDir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("dir", layersDir))

	// reconcileTimer debounces rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			if err := Sync(db, store, logger); err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			name := layerNameFromPath(filepath.ToSlash(ev.Name))
			if name == "" || !strings.HasSuffix(ev.Name, ".json") {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				rel := model.LayerPath(name)
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("layer", name), slog.String("error", readErr.Error()))
					continue
				}
				if idxErr := syncLayerFile(db, store, name, rel, storage.Checksum(data)); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("layer", name), slog.String("error", idxErr.Error()))
					continue
				}
				logger.Debug("watcher: indexed", slog.String("layer", name))
				if cb != nil {
					cb("indexed", name)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteLayer(name); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("layer", name), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: removed", slog.String("layer", name))
				if cb != nil {
					cb("removed", name)
				}

			case ev.Op&fsnotify.Rename != 0:
				if delErr := db.DeleteLayer(name); delErr == nil {
					logger.Debug("watcher: rename old removed", slog.String("layer", name))
					if cb != nil {
						cb("removed", name)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
