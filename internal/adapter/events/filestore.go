// Package events provides the local event file store and the Ticketmaster
// Discovery client.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"localhub/internal/domain"
)

// FileStore reads and writes the flat JSON array of collected events.
// Readers never see a partial file; writes go through a temp file and rename.
type FileStore struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewFileStore creates a store for the JSON file at path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file location.
func (s *FileStore) Path() string { return s.path }

// Load returns all stored events. A missing or malformed file yields an
// empty slice; the problem is logged, not returned.
func (s *FileStore) Load(_ context.Context) ([]domain.Event, error) {
	events, err := s.read()
	if err != nil {
		s.logger.Warn("event file unreadable, serving no local events", "path", s.path, "error", err)
		return []domain.Event{}, nil
	}
	return events, nil
}

// read distinguishes a missing file (empty, no error) from a malformed one.
func (s *FileStore) read() ([]domain.Event, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.Event{}, nil
	}
	if err != nil {
		return nil, domain.NewDomainError("FileStore.Load", domain.ErrMalformedLocalData, err.Error())
	}
	if len(data) == 0 {
		return []domain.Event{}, nil
	}
	var events []domain.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, domain.NewDomainError("FileStore.Load", domain.ErrMalformedLocalData, err.Error())
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}

// Merge adds events to the file, keeping stored entries over incoming ones
// with the same DedupKey. It returns how many events were added.
// A malformed existing file is an error here, so collection never
// overwrites data it could not read.
func (s *FileStore) Merge(_ context.Context, incoming []domain.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read()
	if err != nil {
		return 0, err
	}

	stored := domain.DedupeEvents(existing)
	merged := domain.DedupeEvents(append(stored, incoming...))
	added := len(merged) - len(stored)
	if added == 0 {
		return 0, nil
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, aok := merged[i].StartTime()
		b, bok := merged[j].StartTime()
		if aok != bok {
			return aok
		}
		return a.Before(b)
	})

	if err := writeJSON(s.path, merged); err != nil {
		return 0, domain.WrapOp("FileStore.Merge", err)
	}
	s.logger.Info("event file updated", "path", s.path, "added", added, "total", len(merged))
	return added, nil
}

// writeJSON atomically writes v as indented JSON to path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return domain.WrapOp("marshal", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return domain.WrapOp("write", err)
	}
	return os.Rename(tmp, path)
}

var (
	_ domain.EventStore  = (*FileStore)(nil)
	_ domain.EventWriter = (*FileStore)(nil)
)
