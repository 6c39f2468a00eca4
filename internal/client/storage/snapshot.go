package storage

import (
	"context"
	"time"
)

// SnapshotInfo describes a stored room snapshot
type SnapshotInfo struct {
	SavedAt time.Time
	Room    string
	Size    int
}

//go:generate moq -out snapshotstorage_mock.go . SnapshotStorage

// SnapshotStorage defines interface for local persistence of room state.
// A snapshot is the encoded full state of the replicated document.
type SnapshotStorage interface {
	// SaveSnapshot replaces the stored snapshot of the room
	SaveSnapshot(ctx context.Context, room string, state []byte) error

	// LoadSnapshot returns the stored snapshot of the room.
	// Returns ErrSnapshotNotFound if the room was never saved.
	LoadSnapshot(ctx context.Context, room string) ([]byte, error)

	// DeleteSnapshot removes the snapshot of the room.
	// Deleting a missing snapshot is not an error.
	DeleteSnapshot(ctx context.Context, room string) error

	// ListSnapshots returns all stored snapshots ordered by room
	ListSnapshots(ctx context.Context) ([]SnapshotInfo, error)
}
