package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func newTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "boardsync.db")
	store, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, dbPath
}

func TestNew_Success(t *testing.T) {
	store, dbPath := newTestStorage(t)

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())

	err = store.db.View(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketSnapshots, bucketMetadata} {
			if tx.Bucket(b) == nil {
				return os.ErrNotExist
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestNew_InvalidPath(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "db"))
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestClose(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "testdb.db"))
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	// повторный Close ничего не делает
	assert.NoError(t, store.Close())

	var empty Storage
	assert.NoError(t, empty.Close())
}

func TestInitBuckets_CreatesBuckets(t *testing.T) {
	store, _ := newTestStorage(t)

	require.NoError(t, store.db.Update(func(tx *bbolt.Tx) error {
		_ = tx.DeleteBucket(bucketSnapshots)
		_ = tx.DeleteBucket(bucketMetadata)
		return nil
	}))

	require.NoError(t, store.initBuckets())

	err := store.db.View(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketSnapshots, bucketMetadata} {
			if tx.Bucket(b) == nil {
				return os.ErrNotExist
			}
		}
		return nil
	})
	assert.NoError(t, err)
}
