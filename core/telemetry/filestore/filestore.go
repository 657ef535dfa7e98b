// Package filestore persists the telemetry log as a single JSON document on
// disk. Every write rewrites the whole file through a temporary file and a
// rename, so a crash leaves either the old or the new log.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/koscakluka/cognitive-os/core/telemetry"
)

const DefaultFileName = "telemetry_queue.json"

type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a store backed by the file at path. The parent directory is
// created on the first write.
func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

func (s *Store) ReadAll(ctx context.Context) ([]telemetry.Event, error) {
	_, span := tracer.Start(ctx, "read telemetry file")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) Append(ctx context.Context, event telemetry.Event) error {
	_, span := tracer.Start(ctx, "append telemetry file")
	defer span.End()

	return s.update(func(all []telemetry.Event) ([]telemetry.Event, error) {
		return append(all, event), nil
	})
}

func (s *Store) MarkSynced(ctx context.Context, ids []string) error {
	_, span := tracer.Start(ctx, "mark telemetry synced")
	defer span.End()

	return s.update(func(all []telemetry.Event) ([]telemetry.Event, error) {
		for i := range all {
			if slices.Contains(ids, all[i].ID) {
				all[i].Synced = true
			}
		}
		return all, nil
	})
}

func (s *Store) DeleteSynced(ctx context.Context) (int, error) {
	_, span := tracer.Start(ctx, "compact telemetry file")
	defer span.End()

	removed := 0
	err := s.update(func(all []telemetry.Event) ([]telemetry.Event, error) {
		before := len(all)
		all = slices.DeleteFunc(all, func(event telemetry.Event) bool { return event.Synced })
		removed = before - len(all)
		return all, nil
	})
	return removed, err
}

func (s *Store) update(mutate func([]telemetry.Event) ([]telemetry.Event, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}

	all, err = mutate(all)
	if err != nil {
		return err
	}

	return s.save(all)
}

// load expects s.mu to be held.
func (s *Store) load() ([]telemetry.Event, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []telemetry.Event{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read telemetry log: %w", err)
	}

	if len(data) == 0 {
		return []telemetry.Event{}, nil
	}

	var all []telemetry.Event
	if err := json.Unmarshal(data, &all); err != nil {
		// A corrupt log must not take tracking down with it; the file is
		// moved aside so it can be inspected.
		aside := s.path + ".corrupt"
		if renameErr := os.Rename(s.path, aside); renameErr != nil {
			return nil, fmt.Errorf("failed to decode telemetry log: %w", err)
		}
		logger.Error("telemetry log was corrupt, starting a new one", "path", s.path, "moved_to", aside, "error", err)
		return []telemetry.Event{}, nil
	}
	return all, nil
}

// save expects s.mu to be held.
func (s *Store) save(all []telemetry.Event) error {
	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("failed to encode telemetry log: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create telemetry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary telemetry log: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write telemetry log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync telemetry log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close telemetry log: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace telemetry log: %w", err)
	}
	return nil
}
