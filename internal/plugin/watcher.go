package plugin

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before a reload.
const DefaultDebounce = 500 * time.Millisecond

// Watch monitors dir and calls reload once changes to manifests or the
// ignore file have settled for debounce. New subdirectories are watched as
// they appear. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, dir string, debounce time.Duration, log *slog.Logger, reload func(context.Context)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("plugin: creating watcher: %w", err)
	}
	defer w.Close()

	if err := addTree(w, dir); err != nil {
		return fmt.Errorf("plugin: watching %s: %w", dir, err)
	}
	log.Info("watching plugin directory", "dir", dir, "debounce", debounce)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(w, ev.Name); err != nil {
						log.Warn("cannot watch new directory", "dir", ev.Name, "err", err)
					}
					timer.Reset(debounce)
					continue
				}
			}
			if !relevant(ev) {
				continue
			}
			log.Debug("plugin change", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("plugin watch error", "err", err)

		case <-timer.C:
			reload(ctx)
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	return isManifest(ev.Name) || filepath.Base(ev.Name) == IgnoreFile
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && filepath.Base(path)[0] == '.' {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
