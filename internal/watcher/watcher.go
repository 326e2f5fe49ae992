// Package watcher keeps scenes in step with their documents edited on disk.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/vellum/internal/storage"
)

// Importer receives the changes the watcher observes. Paths are relative to
// the watched root and use forward slashes.
type Importer interface {
	ImportFile(ctx context.Context, path string) (string, error)
	DetachFile(ctx context.Context, path string) error
	Sync(ctx context.Context) error
}

const (
	// settleDelay collapses the burst of writes editors produce on save.
	settleDelay    = 100 * time.Millisecond
	reconcileDelay = 200 * time.Millisecond
)

// debounce is a resettable one-shot timer usable in select.
type debounce struct {
	delay time.Duration
	timer *time.Timer
	C     <-chan time.Time
}

func (d *debounce) schedule() {
	if d.timer == nil {
		d.timer = time.NewTimer(d.delay)
		d.C = d.timer.C
		return
	}
	d.timer.Reset(d.delay)
}

func (d *debounce) stop() {
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Watch starts an fsnotify watcher on root and forwards scene document
// changes to imp until ctx is cancelled.
//
// Writes are imported once the file has been quiet for a short while. New
// directories are added to the watch list. Rename events detach the old path
// and trigger a debounced full sync, which picks up the new name.
func Watch(ctx context.Context, root string, imp Importer, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	pending := make(map[string]struct{})
	settle := &debounce{delay: settleDelay}
	reconcile := &debounce{delay: reconcileDelay}
	defer settle.stop()
	defer reconcile.stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case <-settle.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			slices.Sort(paths)
			for _, p := range paths {
				id, err := imp.ImportFile(ctx, p)
				if err != nil {
					logger.Warn("watcher: import failed", slog.String("path", p), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: imported", slog.String("path", p), slog.String("id", id))
			}

		case <-reconcile.C:
			if err := imp.Sync(ctx); err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Scene files may have landed before the watch was added.
					for _, rel := range sceneFiles(root, absPath) {
						pending[rel] = struct{}{}
					}
					if len(pending) > 0 {
						settle.schedule()
					}
					continue
				}
			}

			if !storage.IsSceneFile(filepath.Base(absPath)) {
				continue
			}
			rel, relErr := relPath(root, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pending[rel] = struct{}{}
				settle.schedule()

			case ev.Op&fsnotify.Remove != 0:
				delete(pending, rel)
				if err := imp.DetachFile(ctx, rel); err != nil {
					logger.Warn("watcher: detach failed", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: detached", slog.String("path", rel))

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports Rename on the old path only. The new path
				// arrives as a Create when it stays inside a watched dir; the
				// reconcile pass covers the rest.
				delete(pending, rel)
				if err := imp.DetachFile(ctx, rel); err != nil {
					logger.Warn("watcher: rename detach failed", slog.String("path", rel), slog.String("error", err.Error()))
				}
				reconcile.schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func relPath(root, abs string) (string, error) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// sceneFiles lists scene documents below dir as root-relative paths.
func sceneFiles(root, dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsSceneFile(d.Name()) {
			return nil
		}
		if rel, relErr := relPath(root, path); relErr == nil {
			out = append(out, rel)
		}
		return nil
	})
	return out
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
