package document

import (
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/boardsync/internal/clock"
	"github.com/iudanet/boardsync/internal/codec"
	"github.com/iudanet/boardsync/internal/models"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newRecordingDoc создает документ и собирает все исходящие обновления
func newRecordingDoc(t *testing.T, nodeID string, frame time.Duration, c clock.Clock) (*Doc, *[][]byte) {
	t.Helper()

	doc := New(Options{NodeID: nodeID, FrameInterval: frame, Clock: c, Logger: setupTestLogger()})
	t.Cleanup(doc.Close)

	var deltas [][]byte
	doc.OnDelta(func(payload []byte) {
		deltas = append(deltas, payload)
	})

	return doc, &deltas
}

func rect(x, y float64) models.Fields {
	return models.Fields{Kind: models.KindRect, Geometry: models.At(x, y)}
}

func snapshot(doc *Doc) map[string]models.Fields {
	result := make(map[string]models.Fields)
	for id, fields := range doc.Entries() {
		result[id] = fields
	}
	return result
}

func TestDoc_ApplyLocalChange_Immediate(t *testing.T) {
	doc, deltas := newRecordingDoc(t, "a", 0, nil)

	require.NoError(t, doc.ApplyLocalChange("o1", rect(10, 10)))
	require.Len(t, *deltas, 1)

	delta, err := codec.Decode((*deltas)[0])
	require.NoError(t, err)
	assert.Equal(t, "a", delta.Origin)
	require.Len(t, delta.Entries, 1)
	assert.Equal(t, "o1", delta.Entries[0].ID)
	assert.Equal(t, models.At(10, 10), delta.Entries[0].Fields.Geometry)
}

func TestDoc_ApplyLocalChange_EmptyID(t *testing.T) {
	doc, deltas := newRecordingDoc(t, "a", 0, nil)

	assert.Error(t, doc.ApplyLocalChange("", rect(0, 0)))
	assert.Empty(t, *deltas)
}

func TestDoc_FrameCoalescing(t *testing.T) {
	fake := clock.Fake(epoch)
	doc, deltas := newRecordingDoc(t, "a", DefaultFrameInterval, fake)

	// Несколько записей в пределах одного кадра
	require.NoError(t, doc.ApplyLocalChange("o1", rect(1, 1)))
	require.NoError(t, doc.ApplyLocalChange("o1", rect(2, 2)))
	require.NoError(t, doc.ApplyLocalChange("o2", rect(3, 3)))
	assert.Empty(t, *deltas, "nothing is emitted before the frame ends")

	fake.Advance(DefaultFrameInterval)
	require.Len(t, *deltas, 1)

	delta, err := codec.Decode((*deltas)[0])
	require.NoError(t, err)
	require.Len(t, delta.Entries, 2)
	assert.Equal(t, "o1", delta.Entries[0].ID)
	assert.Equal(t, models.At(2, 2), delta.Entries[0].Fields.Geometry, "latest write in the frame wins")
	assert.Equal(t, "o2", delta.Entries[1].ID)

	// Следующий кадр - следующее обновление
	require.NoError(t, doc.ApplyLocalChange("o2", rect(4, 4)))
	fake.Advance(DefaultFrameInterval)
	assert.Len(t, *deltas, 2)
}

func TestDoc_Transact(t *testing.T) {
	fake := clock.Fake(epoch)
	doc, deltas := newRecordingDoc(t, "a", DefaultFrameInterval, fake)

	err := doc.Transact(func() error {
		for i := 0; i < 5; i++ {
			if err := doc.ApplyLocalChange("o1", rect(float64(i), 0)); err != nil {
				return err
			}
		}
		return doc.ApplyLocalChange("o2", rect(9, 9))
	})
	require.NoError(t, err)

	// Транзакция отправляется сразу, не дожидаясь кадра
	require.Len(t, *deltas, 1)
	assert.Equal(t, 0, fake.Pending())

	delta, err := codec.Decode((*deltas)[0])
	require.NoError(t, err)
	require.Len(t, delta.Entries, 2)
	assert.Equal(t, float64(4), delta.Entries[0].Fields.Geometry.X)
}

func TestDoc_Transact_PropagatesError(t *testing.T) {
	doc, _ := newRecordingDoc(t, "a", 0, nil)
	boom := errors.New("boom")

	err := doc.Transact(func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestDoc_ApplyLocalDelete(t *testing.T) {
	doc, deltas := newRecordingDoc(t, "a", 0, nil)

	require.NoError(t, doc.ApplyLocalChange("o1", rect(1, 1)))
	require.NoError(t, doc.ApplyLocalDelete("o1"))

	assert.False(t, doc.Has("o1"))
	assert.Equal(t, 0, doc.Len())
	assert.Equal(t, 1, doc.TotalLen())
	require.Len(t, *deltas, 2)

	delta, err := codec.Decode((*deltas)[1])
	require.NoError(t, err)
	assert.True(t, delta.Entries[0].Deleted)

	err = doc.ApplyLocalDelete("o1")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestDoc_ApplyRemoteDelta_NoEcho(t *testing.T) {
	source, sourceDeltas := newRecordingDoc(t, "a", 0, nil)
	target, targetDeltas := newRecordingDoc(t, "b", 0, nil)

	require.NoError(t, source.ApplyLocalChange("o1", rect(10, 10)))

	changed, err := target.ApplyRemoteDelta((*sourceDeltas)[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, changed)
	assert.Empty(t, *targetDeltas, "remote changes must not be re-emitted")

	fields, ok := target.Get("o1")
	require.True(t, ok)
	assert.Equal(t, models.At(10, 10), fields.Geometry)
}

func TestDoc_ApplyRemoteDelta_Idempotent(t *testing.T) {
	source, sourceDeltas := newRecordingDoc(t, "a", 0, nil)
	require.NoError(t, source.ApplyLocalChange("o1", rect(1, 1)))
	require.NoError(t, source.ApplyLocalChange("o2", rect(2, 2)))
	require.NoError(t, source.ApplyLocalDelete("o1"))

	once, _ := newRecordingDoc(t, "b", 0, nil)
	twice, _ := newRecordingDoc(t, "c", 0, nil)

	for _, payload := range *sourceDeltas {
		_, err := once.ApplyRemoteDelta(payload)
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		for _, payload := range *sourceDeltas {
			changed, err := twice.ApplyRemoteDelta(payload)
			require.NoError(t, err)
			if i == 1 {
				assert.Empty(t, changed, "second application changes nothing")
			}
		}
	}

	assert.Equal(t, snapshot(once), snapshot(twice))
	assert.Equal(t, map[string]models.Fields{"o2": rect(2, 2)}, snapshot(twice))
}

func TestDoc_Convergence_AnyOrder(t *testing.T) {
	peerA, deltasA := newRecordingDoc(t, "a", 0, nil)
	peerB, deltasB := newRecordingDoc(t, "b", 0, nil)

	// Конкурентные правки одного и того же объекта и разных объектов
	require.NoError(t, peerA.ApplyLocalChange("o1", rect(1, 1)))
	require.NoError(t, peerB.ApplyLocalChange("o1", rect(2, 2)))
	require.NoError(t, peerA.ApplyLocalChange("o2", rect(3, 3)))
	require.NoError(t, peerB.ApplyLocalChange("o3", rect(4, 4)))
	require.NoError(t, peerB.ApplyLocalDelete("o3"))
	require.NoError(t, peerA.ApplyLocalChange("o4", rect(5, 5)))

	all := append(append([][]byte{}, *deltasA...), *deltasB...)

	var reference map[string]models.Fields
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		order := rng.Perm(len(all))
		peer, _ := newRecordingDoc(t, "observer", 0, nil)
		for _, idx := range order {
			_, err := peer.ApplyRemoteDelta(all[idx])
			require.NoError(t, err)
		}

		if reference == nil {
			reference = snapshot(peer)
			continue
		}
		assert.Equal(t, reference, snapshot(peer), "permutation %v diverged", order)
	}

	// Участники после обмена обновлениями приходят к тому же состоянию
	for _, payload := range *deltasB {
		_, err := peerA.ApplyRemoteDelta(payload)
		require.NoError(t, err)
	}
	for _, payload := range *deltasA {
		_, err := peerB.ApplyRemoteDelta(payload)
		require.NoError(t, err)
	}
	assert.Equal(t, snapshot(peerA), snapshot(peerB))
	assert.Equal(t, reference, snapshot(peerA))
}

func TestDoc_LocalWriteAfterRemoteWins(t *testing.T) {
	peerA, deltasA := newRecordingDoc(t, "a", 0, nil)
	peerB, _ := newRecordingDoc(t, "b", 0, nil)

	for i := 0; i < 10; i++ {
		require.NoError(t, peerA.ApplyLocalChange("o1", rect(float64(i), 0)))
	}
	for _, payload := range *deltasA {
		_, err := peerB.ApplyRemoteDelta(payload)
		require.NoError(t, err)
	}

	// Witness продвинул часы B, поэтому его запись новее
	require.NoError(t, peerB.ApplyLocalChange("o1", rect(100, 0)))
	fields, _ := peerB.Get("o1")
	assert.Equal(t, float64(100), fields.Geometry.X)
}

func TestDoc_ApplyRemoteDelta_Malformed(t *testing.T) {
	doc, _ := newRecordingDoc(t, "a", 0, nil)
	require.NoError(t, doc.ApplyLocalChange("o1", rect(1, 1)))
	before := snapshot(doc)

	changed, err := doc.ApplyRemoteDelta([]byte{0xff, 0x00, 0x13})
	require.Error(t, err)
	assert.ErrorIs(t, err, codec.ErrDecode)
	assert.Nil(t, changed)
	assert.Equal(t, before, snapshot(doc), "bad payload must not touch state")
}

func TestDoc_EncodeState(t *testing.T) {
	source, _ := newRecordingDoc(t, "a", 0, nil)
	require.NoError(t, source.ApplyLocalChange("o1", rect(1, 1)))
	require.NoError(t, source.ApplyLocalChange("o2", rect(2, 2)))
	require.NoError(t, source.ApplyLocalDelete("o2"))

	state, err := source.EncodeState()
	require.NoError(t, err)

	// Полное состояние несет и tombstone, поэтому устаревший o2 не воскреснет
	target, _ := newRecordingDoc(t, "b", 0, nil)
	stale := New(Options{NodeID: "stale", FrameInterval: 0})
	var staleDelta []byte
	stale.OnDelta(func(p []byte) { staleDelta = p })
	require.NoError(t, stale.ApplyLocalChange("o2", rect(9, 9)))

	_, err = target.ApplyRemoteDelta(staleDelta)
	require.NoError(t, err)
	_, err = target.ApplyRemoteDelta(state)
	require.NoError(t, err)

	assert.Equal(t, snapshot(source), snapshot(target))
}

func TestDoc_Entries_InsertionOrder(t *testing.T) {
	doc, _ := newRecordingDoc(t, "a", 0, nil)
	for _, id := range []string{"z", "m", "a"} {
		require.NoError(t, doc.ApplyLocalChange(id, rect(0, 0)))
	}

	var ids []string
	for id := range doc.Entries() {
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"z", "m", "a"}, ids)
}

func TestDoc_Close(t *testing.T) {
	fake := clock.Fake(epoch)
	doc, deltas := newRecordingDoc(t, "a", DefaultFrameInterval, fake)

	require.NoError(t, doc.ApplyLocalChange("o1", rect(1, 1)))
	doc.Close()
	fake.Advance(time.Second)

	assert.Empty(t, *deltas, "no delta is emitted after Close")
	assert.ErrorIs(t, doc.ApplyLocalChange("o2", rect(1, 1)), ErrClosed)
	assert.ErrorIs(t, doc.Transact(func() error { return nil }), ErrClosed)

	// Повторный Close безопасен
	doc.Close()
}

func TestDoc_OnDelta_Unsubscribe(t *testing.T) {
	doc := New(Options{NodeID: "a"})
	defer doc.Close()

	calls := 0
	unsubscribe := doc.OnDelta(func([]byte) { calls++ })

	require.NoError(t, doc.Transact(func() error { return doc.ApplyLocalChange("o1", rect(0, 0)) }))
	unsubscribe()
	require.NoError(t, doc.Transact(func() error { return doc.ApplyLocalChange("o1", rect(1, 0)) }))

	assert.Equal(t, 1, calls)
}
