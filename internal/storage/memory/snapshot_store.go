package memory

import (
	"context"
	"fmt"
	"sync"

	"poolDesk/internal/model"
	"poolDesk/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	docs map[string]*model.DailySnapshotDocument
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{docs: make(map[string]*model.DailySnapshotDocument)}
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

func (s *SnapshotStore) Get(_ context.Context, date string) (*model.DailySnapshotDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[date]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *SnapshotStore) Put(_ context.Context, doc *model.DailySnapshotDocument, expected int64) error {
	if doc == nil || doc.Date == "" {
		return fmt.Errorf("put snapshot: date is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if existing, ok := s.docs[doc.Date]; ok {
		current = existing.Version
	}
	if current != expected {
		return fmt.Errorf("%w: date %s stored %d expected %d", storage.ErrVersionConflict, doc.Date, current, expected)
	}

	doc.Version = expected + 1
	s.docs[doc.Date] = doc.Clone()
	return nil
}

// Len returns the number of stored dates.
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
