package importer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reconcileDelay debounces the full rescan that follows renames.
const reconcileDelay = 200 * time.Millisecond

// Target is the project a watched directory is mirrored into.
type Target interface {
	Files() map[string]string
	Put(path, content string) error
	Remove(path string) error
}

// Watch mirrors root into t until ctx is cancelled. The directory is synced
// once at start; afterwards file events are applied one by one, and renames
// trigger a debounced reconciliation against the directory contents.
func Watch(ctx context.Context, root string, lim Limits, t Target, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	reconcile(root, lim, t, logger)
	logger.Info("watcher: started", slog.String("root", root))

	c := newCollector(lim)

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
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
			reconcile(root, lim, t, logger)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if skipDir(info.Name()) {
						continue
					}
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					// Files may have landed before the watch was added.
					scheduleReconcile()
					continue
				}
			}

			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				info, statErr := os.Stat(ev.Name)
				if statErr != nil || !info.Mode().IsRegular() || !c.accepts(rel, info.Size()) {
					continue
				}
				data, readErr := os.ReadFile(ev.Name)
				if readErr != nil || !isText(data) {
					continue
				}
				if putErr := t.Put(rel, string(data)); putErr != nil {
					logger.Warn("watcher: apply failed", slog.String("path", rel), slog.String("error", putErr.Error()))
					continue
				}
				logger.Debug("watcher: synced", slog.String("path", rel))

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// Rename fires on the old path; the new one arrives as a
				// Create when it stays inside a watched directory.
				if _, known := t.Files()[rel]; known {
					if rmErr := t.Remove(rel); rmErr != nil {
						logger.Warn("watcher: remove failed", slog.String("path", rel), slog.String("error", rmErr.Error()))
					}
				}
				if ev.Op&fsnotify.Rename != 0 {
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile brings t in line with the directory: files missing on disk are
// removed, new or changed ones are written.
func reconcile(root string, lim Limits, t Target, logger *slog.Logger) {
	disk, err := FromDir(root, lim)
	if err != nil {
		logger.Warn("reconcile: scan failed", slog.String("error", err.Error()))
		return
	}
	current := t.Files()
	for p := range current {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := t.Remove(p); err == nil {
			logger.Debug("reconcile: removed stale", slog.String("path", p))
		}
	}
	for p, text := range disk {
		if old, ok := current[p]; ok && old == text {
			continue
		}
		if err := t.Put(p, text); err != nil {
			logger.Warn("reconcile: apply failed", slog.String("path", p), slog.String("error", err.Error()))
		}
	}
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
