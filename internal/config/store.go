package config

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Store holds the current configuration snapshot. Readers get a consistent
// immutable value; the watcher swaps in replacements wholesale.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore creates a store seeded with an initial snapshot.
func NewStore(cfg Config) *Store {
	s := &Store{}
	s.current.Store(&cfg)
	return s
}

// Snapshot returns the current configuration.
func (s *Store) Snapshot() Config {
	return *s.current.Load()
}

// Swap replaces the current snapshot.
func (s *Store) Swap(cfg Config) {
	s.current.Store(&cfg)
}

// Watch reloads the provider settings file whenever it changes, swapping a
// new snapshot into the store. A malformed file keeps the previous snapshot.
// Watch blocks until the context is cancelled.
func (s *Store) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory rather than the file: editors replace files on
	// save, which drops a direct file watch.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("config watcher closed")
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			eventPath, err := filepath.Abs(event.Name)
			if err != nil || eventPath != target {
				continue
			}
			s.reload(path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("config watcher closed")
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func (s *Store) reload(path string) {
	overrides, err := LoadProvidersFile(path)
	if err != nil {
		slog.Warn("provider settings reload failed, keeping previous snapshot", "path", path, "error", err)
		return
	}

	next := s.Snapshot()
	next.Providers = MergeProviders(next.Providers, overrides)
	s.Swap(next)
	slog.Info("provider settings reloaded", "path", path, "providers", len(overrides))
}
