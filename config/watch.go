package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/rhi"
)

// WatchOption configures Watch.
type WatchOption func(*watchOptions)

type watchOptions struct {
	log *slog.Logger
}

// WithWatchLogger reports reloads and watcher errors to l instead of the
// rhi package logger.
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(o *watchOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// Watch calls fn with the reloaded configuration each time the file at
// path is written or replaced, until ctx is done. A file that fails to
// load is reported through fn with a nil Config.
//
// The parent directory is watched so that editors that save by renaming
// a temporary file are followed.
func Watch(ctx context.Context, path string, fn func(*Config, error), opts ...WatchOption) error {
	o := watchOptions{log: rhi.Logger()}
	for _, opt := range opts {
		opt(&o)
	}
	if _, err := FormatOf(path); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer func() { _ = w.Close() }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(abs)
			if err != nil {
				o.log.Warn("config: reload failed", slog.String("path", abs), slog.String("err", err.Error()))
			} else {
				o.log.Info("config: reloaded", slog.String("path", abs))
			}
			fn(cfg, err)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			o.log.Warn("config: watcher error", slog.String("err", err.Error()))
		}
	}
}
