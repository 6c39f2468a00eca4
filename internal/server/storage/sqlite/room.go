package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/internal/server/storage"
)

var _ storage.RoomStorage = (*Storage)(nil)

// SaveEntries merges entries into the room state.
// Uses LWW logic in the upsert itself: the stored row is replaced only when
// the incoming entry has a greater (timestamp, node_id) pair.
// Returns the number of written entries.
func (s *Storage) SaveEntries(ctx context.Context, room string, entries []*models.ObjectEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO room_objects (
			room_id, id, node_id, kind, payload,
			x, y, rotation, scale_x, scale_y,
			timestamp, deleted, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(room_id, id) DO UPDATE SET
			node_id = excluded.node_id,
			kind = excluded.kind,
			payload = excluded.payload,
			x = excluded.x,
			y = excluded.y,
			rotation = excluded.rotation,
			scale_x = excluded.scale_x,
			scale_y = excluded.scale_y,
			timestamp = excluded.timestamp,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at
		WHERE excluded.timestamp > room_objects.timestamp
		   OR (excluded.timestamp = room_objects.timestamp AND excluded.node_id > room_objects.node_id)
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	saved := 0
	for _, entry := range entries {
		if entry == nil || entry.ID == "" {
			return 0, fmt.Errorf("save entry: %w", storage.ErrInvalidEntry)
		}

		g := entry.Fields.Geometry
		result, err := stmt.ExecContext(ctx,
			room,
			entry.ID,
			entry.NodeID,
			entry.Fields.Kind,
			entry.Fields.Payload,
			g.X, g.Y, g.Rotation, g.ScaleX, g.ScaleY,
			entry.Timestamp,
			boolToInt(entry.Deleted),
			entry.UpdatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to save entry %s: %w", entry.ID, err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		saved += int(rows)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return saved, nil
}

// LoadRoom retrieves all entries (including tombstones) of the room
func (s *Storage) LoadRoom(ctx context.Context, room string) ([]*models.ObjectEntry, error) {
	query := `
		SELECT id, node_id, kind, payload, x, y, rotation, scale_x, scale_y,
		       timestamp, deleted, updated_at
		FROM room_objects
		WHERE room_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, room)
	if err != nil {
		return nil, fmt.Errorf("failed to query room: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	entries := make([]*models.ObjectEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if len(entries) == 0 {
		return nil, storage.ErrRoomNotFound
	}

	return entries, nil
}

// RoomStats returns summary of persisted room
func (s *Storage) RoomStats(ctx context.Context, room string) (*storage.RoomStats, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN deleted = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(MAX(updated_at), 0)
		FROM room_objects
		WHERE room_id = ?
	`

	var (
		total, live int
		updatedAt   int64
	)
	if err := s.db.QueryRowContext(ctx, query, room).Scan(&total, &live, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to query room stats: %w", err)
	}
	if total == 0 {
		return nil, storage.ErrRoomNotFound
	}

	return &storage.RoomStats{
		Room:      room,
		Objects:   live,
		Entries:   total,
		UpdatedAt: time.UnixMilli(updatedAt),
	}, nil
}

// ListRooms returns identifiers of all persisted rooms
func (s *Storage) ListRooms(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT room_id FROM room_objects ORDER BY room_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	rooms := make([]string, 0)
	for rows.Next() {
		var room string
		if err := rows.Scan(&room); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return rooms, nil
}

// scanEntry scans a single row into ObjectEntry
func scanEntry(rows *sql.Rows) (*models.ObjectEntry, error) {
	var (
		entry   models.ObjectEntry
		payload []byte
		deleted int
	)

	g := &entry.Fields.Geometry
	err := rows.Scan(
		&entry.ID,
		&entry.NodeID,
		&entry.Fields.Kind,
		&payload,
		&g.X, &g.Y, &g.Rotation, &g.ScaleX, &g.ScaleY,
		&entry.Timestamp,
		&deleted,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}

	if len(payload) > 0 {
		entry.Fields.Payload = payload
	}
	entry.Deleted = intToBool(deleted)

	return &entry, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}
