package config

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadSettle is how long the file must stay quiet before a reload. Saves
// arrive as truncate + write (or several writes), and reading in between
// would apply a half-written file.
const reloadSettle = 100 * time.Millisecond

// Watch reloads path after it changes and passes the new Config to onChange.
// It runs until ctx is cancelled.
//
// A reload that fails to parse or validate, or finds the file empty, is
// logged and skipped; the previous config stays active. An empty file would
// otherwise load as pure defaults and silently disable API-key auth.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	return watch(ctx, path, reloadSettle, onChange)
}

func watch(ctx context.Context, path string, settle time.Duration, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("server config: watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("server config: watch %q: %w", path, err)
	}

	slog.Info("config: watching for changes", "path", path)

	timer := time.NewTimer(settle)
	stopTimer(timer)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save via rename, so Create counts as a write.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			resetTimer(timer, settle)

		case <-timer.C:
			if cfg, ok := reload(path); ok {
				onChange(cfg)
			}
			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// stopTimer stops t and discards a fire that has not been received.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}

func reload(path string) (*Config, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("config: reload failed, keeping previous config", "path", path, "err", err)
		return nil, false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		slog.Warn("config: file is empty, keeping previous config", "path", path)
		return nil, false
	}
	cfg, err := parse(data)
	if err != nil {
		slog.Error("config: reload failed, keeping previous config", "path", path, "err", err)
		return nil, false
	}
	slog.Info("config: reloaded", "path", path)
	return cfg, true
}
