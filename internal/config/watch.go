package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads s whenever its backing file is written or replaced. It blocks
// until ctx is cancelled. Memory stores return immediately.
func Watch(ctx context.Context, s *Store, logger *slog.Logger) error {
	if s.Path() == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	path := filepath.Clean(s.Path())
	// Watch the directory: editors and SaveToPath replace the file by rename.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			if _, err := s.Reload(); err != nil {
				logger.Warn("config reload failed", "path", path, "error", err)
				continue
			}
			logger.Debug("config reloaded", "path", path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
