package site

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event kinds passed to EventCallback.
const (
	EventBuilt   = "built"
	EventRemoved = "removed"
)

// EventCallback is called after a watcher-driven page change.
type EventCallback func(kind string, path string)

const debounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the source and template directories and
// keeps the output tree current until ctx is cancelled. It calls cb (if
// non-nil) after each page built or removed.
//
// A written source rebuilds that page, a removed one deletes it. Renames and
// new directories trigger a debounced incremental build; any template change
// triggers a debounced forced build of every page.
func (b *Builder) Watch(ctx context.Context, cb EventCallback) error {
	logger := b.cfg.Logger
	srcRoot := b.cfg.Sources.Root()
	tmplRoot := b.cfg.Templates.Root()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, root := range []string{srcRoot, tmplRoot} {
		if err := addDirsRecursive(w, root); err != nil {
			return err
		}
	}

	logger.Info("watcher: started",
		slog.String("sources", srcRoot),
		slog.String("templates", tmplRoot))

	notify := func(kind, path string) {
		if cb != nil {
			cb(kind, path)
		}
	}

	var (
		timer        *time.Timer
		timerC       <-chan time.Time
		forcePending bool
	)
	schedule := func(force bool) {
		forcePending = forcePending || force
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerC = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerC:
			force := forcePending
			forcePending = false
			rep, err := b.buildAll(ctx, force)
			if err != nil {
				logger.Warn("watcher: rebuild failed", slog.String("error", err.Error()))
				continue
			}
			for _, p := range rep.BuiltPaths {
				notify(EventBuilt, p)
			}
			for _, p := range rep.RemovedPaths {
				notify(EventRemoved, p)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name
			inTemplates := isUnder(absPath, tmplRoot)

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					schedule(inTemplates)
					continue
				}
			}

			if inTemplates {
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					logger.Debug("watcher: template changed", slog.String("path", absPath))
					schedule(true)
				}
				continue
			}

			if !strings.HasSuffix(absPath, SourceExt) || strings.HasPrefix(filepath.Base(absPath), ".") {
				continue
			}
			rel, relErr := filepath.Rel(srcRoot, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				built, err := b.Refresh(ctx, rel)
				if err != nil {
					logger.Warn("watcher: build failed", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				if !built {
					// Content unchanged since the last build.
					continue
				}
				logger.Debug("watcher: built", slog.String("path", rel))
				notify(EventBuilt, rel)

			case ev.Op&fsnotify.Remove != 0:
				if err := b.Remove(ctx, rel); err != nil {
					logger.Warn("watcher: remove failed", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: removed", slog.String("path", rel))
				notify(EventRemoved, rel)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the old path only; the new path
				// arrives as a Create if it stays inside a watched dir.
				if err := b.Remove(ctx, rel); err == nil {
					notify(EventRemoved, rel)
				}
				schedule(false)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func isUnder(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
