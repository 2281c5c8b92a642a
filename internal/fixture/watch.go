package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// WatchFile calls onChange with the re-parsed scenario whenever the file at
// path is written or replaced. Invalid edits are logged and skipped. It
// blocks until ctx is cancelled.
func WatchFile(ctx context.Context, path string, onChange func(Scenario)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve scenario path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				debounce = time.After(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("scenario watcher error", "error", err)
		case <-debounce:
			debounce = nil
			sc, err := Load(abs)
			if err != nil {
				slog.Warn("scenario reload failed", "path", abs, "error", err)
				continue
			}
			slog.Info("scenario reloaded", "path", abs, "stages", len(sc.Stages))
			onChange(sc)
		}
	}
}
