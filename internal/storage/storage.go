package storage

import (
	"context"
	"errors"

	"poolDesk/internal/model"
)

var (
	// ErrNotFound is returned when no snapshot exists for a date.
	ErrNotFound = errors.New("snapshot not found")

	// ErrVersionConflict is returned by Put when the stored version differs from the expected one.
	ErrVersionConflict = errors.New("snapshot version conflict")
)

// SnapshotStore persists daily snapshot documents keyed by date.
type SnapshotStore interface {
	// Get returns the stored document or ErrNotFound.
	Get(ctx context.Context, date string) (*model.DailySnapshotDocument, error)

	// Put writes doc if the stored version equals expected (0 when absent).
	// On success doc.Version is set to expected+1.
	Put(ctx context.Context, doc *model.DailySnapshotDocument, expected int64) error
}
