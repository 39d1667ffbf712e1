package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay coalesces the burst of events a single save produces
// (truncate then write, or write temp then rename).
const settleDelay = 50 * time.Millisecond

// Watch calls onChange with the reloaded Config whenever the file at path is
// written or replaced, until ctx is cancelled.
//
// The parent directory is watched rather than the file, so saves that rename
// a new file over path keep being seen. A reload that fails to parse or
// validate is logged and the previous config stays active.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config: watch %q: %w", filepath.Dir(path), err)
	}
	slog.Info("config: watching for changes", "path", path)

	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				settle.Reset(settleDelay)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				slog.Debug("config: file moved away, waiting for replacement", "path", path)
			}

		case <-settle.C:
			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}
			slog.Info("config: reloaded", "path", path, "target", cfg.Probe.TargetURL)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
