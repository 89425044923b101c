package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the config file whenever it is written or replaced and hands
// the new configuration to onChange. A file that fails to load is logged and
// skipped; the previous configuration stays in effect. Watch blocks until ctx
// is done.
func Watch(ctx context.Context, filePath string, logger *zap.Logger, onChange func(*AppConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// watch the directory: editors often replace the file instead of writing it
	if err := watcher.Add(filepath.Dir(filePath)); err != nil {
		return err
	}
	target := filepath.Clean(filePath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(filePath)
			if err != nil {
				logger.Warn("config reload failed", zap.String("path", filePath), zap.Error(err))
				continue
			}
			logger.Info("config reloaded", zap.String("path", filePath))
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", zap.Error(err))
		}
	}
}
