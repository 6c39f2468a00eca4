package boltdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/boardsync/internal/client/storage"
)

var _ storage.SnapshotStorage = (*Storage)(nil)

// SaveSnapshot replaces the stored snapshot of the room and records the save time
func (s *Storage) SaveSnapshot(ctx context.Context, room string, state []byte) error {
	if room == "" {
		return fmt.Errorf("room id cannot be empty")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		snapshots := tx.Bucket(bucketSnapshots)
		meta := tx.Bucket(bucketMetadata)
		if snapshots == nil || meta == nil {
			return fmt.Errorf("snapshot buckets not found")
		}

		// bbolt требует, чтобы значение жило до конца транзакции
		if err := snapshots.Put([]byte(room), bytes.Clone(state)); err != nil {
			return fmt.Errorf("failed to put snapshot: %w", err)
		}

		savedAt := make([]byte, 8)
		binary.BigEndian.PutUint64(savedAt, uint64(time.Now().UnixMilli()))
		if err := meta.Put([]byte(room), savedAt); err != nil {
			return fmt.Errorf("failed to put snapshot metadata: %w", err)
		}

		return nil
	})
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return storage.ErrStorageClosed
	}
	if err != nil {
		return fmt.Errorf("failed to save snapshot for room %s: %w", room, err)
	}

	return nil
}

// LoadSnapshot returns the stored snapshot of the room
func (s *Storage) LoadSnapshot(ctx context.Context, room string) ([]byte, error) {
	var state []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshots)
		if bucket == nil {
			return fmt.Errorf("snapshots bucket not found")
		}

		data := bucket.Get([]byte(room))
		if data == nil {
			return storage.ErrSnapshotNotFound
		}

		// данные валидны только внутри транзакции
		state = bytes.Clone(data)
		return nil
	})
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		return nil, err
	}
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return nil, storage.ErrStorageClosed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for room %s: %w", room, err)
	}

	return state, nil
}

// DeleteSnapshot removes the snapshot of the room
func (s *Storage) DeleteSnapshot(ctx context.Context, room string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketSnapshots, bucketMetadata} {
			bucket := tx.Bucket(name)
			if bucket == nil {
				return fmt.Errorf("bucket %s not found", name)
			}
			if err := bucket.Delete([]byte(room)); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return storage.ErrStorageClosed
	}
	if err != nil {
		return fmt.Errorf("failed to delete snapshot for room %s: %w", room, err)
	}

	return nil
}

// ListSnapshots returns all stored snapshots ordered by room
func (s *Storage) ListSnapshots(ctx context.Context) ([]storage.SnapshotInfo, error) {
	var infos []storage.SnapshotInfo

	err := s.db.View(func(tx *bbolt.Tx) error {
		snapshots := tx.Bucket(bucketSnapshots)
		meta := tx.Bucket(bucketMetadata)
		if snapshots == nil || meta == nil {
			return fmt.Errorf("snapshot buckets not found")
		}

		// ключи в bbolt отсортированы
		return snapshots.ForEach(func(k, v []byte) error {
			info := storage.SnapshotInfo{
				Room: string(k),
				Size: len(v),
			}
			if ts := meta.Get(k); len(ts) == 8 {
				info.SavedAt = time.UnixMilli(int64(binary.BigEndian.Uint64(ts)))
			}
			infos = append(infos, info)
			return nil
		})
	})
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return nil, storage.ErrStorageClosed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	return infos, nil
}
