package storage

import "errors"

// Common storage errors
var (
	// ErrRoomNotFound indicates that room has no persisted objects
	ErrRoomNotFound = errors.New("room not found")

	// ErrInvalidEntry indicates that entry cannot be persisted (empty id, nil entry)
	ErrInvalidEntry = errors.New("invalid entry")
)
