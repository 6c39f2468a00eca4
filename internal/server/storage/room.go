package storage

import (
	"context"
	"time"

	"github.com/iudanet/boardsync/internal/models"
)

// RoomStats summary of persisted room state
type RoomStats struct {
	UpdatedAt time.Time
	Room      string
	Objects   int // live objects
	Entries   int // live objects and tombstones
}

//go:generate moq -out roomstorage_mock.go . RoomStorage

// RoomStorage defines interface for relay room state persistence
type RoomStorage interface {
	// SaveEntries merges entries into the room using LWW logic:
	// an entry is written only if it is newer than the stored one.
	// Returns the number of entries actually written.
	SaveEntries(ctx context.Context, room string, entries []*models.ObjectEntry) (int, error)

	// LoadRoom retrieves all entries (including tombstones) of the room
	// in timestamp order. Returns ErrRoomNotFound if room has no entries.
	LoadRoom(ctx context.Context, room string) ([]*models.ObjectEntry, error)

	// RoomStats returns summary of the room.
	// Returns ErrRoomNotFound if room has no entries.
	RoomStats(ctx context.Context, room string) (*RoomStats, error)

	// ListRooms returns identifiers of all persisted rooms
	ListRooms(ctx context.Context) ([]string, error)
}
