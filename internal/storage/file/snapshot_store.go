package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"poolDesk/internal/model"
	"poolDesk/internal/storage"
)

// SnapshotStore keeps one JSON document per date under Dir.
// Version checks are serialized within the process only.
type SnapshotStore struct {
	Dir string

	mu sync.Mutex
}

func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("state dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &SnapshotStore{Dir: dir}, nil
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

func (s *SnapshotStore) path(date string) string {
	return filepath.Join(s.Dir, date+".json")
}

func (s *SnapshotStore) Get(_ context.Context, date string) (*model.DailySnapshotDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(date)
}

func (s *SnapshotStore) read(date string) (*model.DailySnapshotDocument, error) {
	data, err := os.ReadFile(s.path(date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var doc model.DailySnapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if doc.Pools == nil {
		doc.Pools = make(map[string]model.PoolSnapshotEntry)
	}
	return &doc, nil
}

func (s *SnapshotStore) Put(ctx context.Context, doc *model.DailySnapshotDocument, expected int64) error {
	if doc == nil || doc.Date == "" {
		return fmt.Errorf("put snapshot: date is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	existing, err := s.read(doc.Date)
	switch {
	case err == nil:
		current = existing.Version
	case !errors.Is(err, storage.ErrNotFound):
		return err
	}
	if current != expected {
		return fmt.Errorf("%w: date %s stored %d expected %d", storage.ErrVersionConflict, doc.Date, current, expected)
	}

	out := doc.Clone()
	out.Version = expected + 1
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	path := s.path(doc.Date)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	doc.Version = out.Version
	return nil
}
