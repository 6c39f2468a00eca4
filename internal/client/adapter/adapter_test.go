package adapter

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/boardsync/internal/client/scene"
	"github.com/iudanet/boardsync/internal/client/scene/memory"
	"github.com/iudanet/boardsync/internal/clock"
	"github.com/iudanet/boardsync/internal/codec"
	"github.com/iudanet/boardsync/internal/document"
	"github.com/iudanet/boardsync/internal/models"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// recorder собирает исходящие обновления документа
type recorder struct {
	payloads [][]byte
	mu       sync.Mutex
}

func (r *recorder) record(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func (r *recorder) last(t *testing.T) *models.Delta {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.payloads)
	delta, err := codec.Decode(r.payloads[len(r.payloads)-1])
	require.NoError(t, err)
	return delta
}

type fixture struct {
	clock   *clock.FakeClock
	surface *memory.Surface
	doc     *document.Doc
	adapter *Adapter
	out     *recorder
}

func sequentialIDs() func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("o%d", n)
	}
}

func newFixture(t *testing.T, surfaceOpts memory.Options) *fixture {
	t.Helper()

	fc := clock.Fake(time.Unix(1700000000, 0))
	surface := memory.New(surfaceOpts)
	doc := document.New(document.Options{Clock: fc, Logger: testLogger, NodeID: "local"})
	out := &recorder{}
	doc.OnDelta(out.record)

	a := New(surface, doc, Options{
		Clock:  fc,
		Logger: testLogger,
		NewID:  sequentialIDs(),
	})
	t.Cleanup(func() {
		a.Close()
		doc.Close()
	})

	return &fixture{clock: fc, surface: surface, doc: doc, adapter: a, out: out}
}

// settle дает циклу адаптера обработать события, а документу отправить кадр
func (f *fixture) settle() {
	f.adapter.Sync()
	f.doc.Flush()
}

// remote применяет изменения другого участника к локальному документу
func (f *fixture) remote(t *testing.T, peer *document.Doc, change func()) {
	t.Helper()

	var payload []byte
	unsubscribe := peer.OnDelta(func(p []byte) { payload = p })
	defer unsubscribe()

	require.NoError(t, peer.Transact(func() error {
		change()
		return nil
	}))
	require.NotNil(t, payload)

	_, err := f.doc.ApplyRemoteDelta(payload)
	require.NoError(t, err)
	f.adapter.Reconcile()
	f.adapter.Sync()
}

func (f *fixture) waitHandle(t *testing.T, id string) scene.Handle {
	t.Helper()

	var h scene.Handle
	require.Eventually(t, func() bool {
		var ok bool
		h, ok = f.adapter.HandleOf(id)
		return ok
	}, time.Second, time.Millisecond)
	f.adapter.Sync()

	return h
}

func newPeer(t *testing.T) *document.Doc {
	t.Helper()
	peer := document.New(document.Options{Logger: testLogger, NodeID: "peer", FrameInterval: time.Hour})
	t.Cleanup(peer.Close)
	return peer
}

func rect(x, y float64) models.Fields {
	return models.Fields{Kind: models.KindRect, Geometry: models.At(x, y)}
}

func TestAdapter_EnsureIdentifierIdempotent(t *testing.T) {
	f := newFixture(t, memory.Options{})

	h := f.surface.Draw(rect(0, 0))
	first := f.adapter.EnsureIdentifier(h)
	second := f.adapter.EnsureIdentifier(h)

	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)

	other := f.surface.Draw(rect(1, 1))
	assert.NotEqual(t, first, f.adapter.EnsureIdentifier(other))
}

func TestAdapter_LocalAddEmitsChange(t *testing.T) {
	f := newFixture(t, memory.Options{})

	h := f.surface.Draw(rect(10, 10))
	f.settle()

	id, ok := f.adapter.IdentifierOf(h)
	require.True(t, ok)
	assert.True(t, f.doc.Has(id))
	assert.Equal(t, PhaseSynced, f.adapter.Phase(id))
	require.Equal(t, 1, f.out.count())

	delta := f.out.last(t)
	require.Len(t, delta.Entries, 1)
	assert.Equal(t, id, delta.Entries[0].ID)
	assert.Equal(t, models.At(10, 10), delta.Entries[0].Fields.Geometry)
}

func TestAdapter_AdoptsExistingObjects(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	surface := memory.New(memory.Options{})
	surface.Draw(rect(1, 1))
	surface.Draw(rect(2, 2))

	doc := document.New(document.Options{Clock: fc, Logger: testLogger, FrameInterval: -1})
	defer doc.Close()

	a := New(surface, doc, Options{Clock: fc, Logger: testLogger})
	defer a.Close()
	a.Sync()

	assert.Equal(t, 2, doc.Len())
}

func TestAdapter_NoopSuppression(t *testing.T) {
	f := newFixture(t, memory.Options{})

	h := f.surface.Draw(rect(10, 10))
	f.settle()
	require.Equal(t, 1, f.out.count())

	require.NoError(t, f.surface.Move(h, models.At(10, 10), false))
	f.settle()
	assert.Equal(t, 1, f.out.count(), "unchanged geometry must not be sent")

	require.NoError(t, f.surface.Move(h, models.At(11, 10), false))
	f.settle()
	assert.Equal(t, 2, f.out.count())
}

func TestAdapter_DebounceCoalescesDrag(t *testing.T) {
	f := newFixture(t, memory.Options{})

	h := f.surface.Draw(rect(10, 10))
	f.settle()
	id, _ := f.adapter.IdentifierOf(h)
	require.Equal(t, 1, f.out.count())

	for i := 1; i <= 30; i++ {
		require.NoError(t, f.surface.Move(h, models.At(10+float64(i), 10+float64(i)), true))
		f.settle()
		f.clock.Advance(time.Millisecond)
	}

	assert.Equal(t, 1, f.out.count(), "nothing is sent while the drag continues")
	assert.Equal(t, PhaseLocallyModified, f.adapter.Phase(id))

	f.clock.Advance(DefaultDebounce)
	f.settle()

	require.Equal(t, 2, f.out.count(), "the whole drag is one update")
	delta := f.out.last(t)
	require.Len(t, delta.Entries, 1)
	assert.Equal(t, models.At(40, 40), delta.Entries[0].Fields.Geometry)
	assert.Equal(t, PhaseSynced, f.adapter.Phase(id))
}

func TestAdapter_FlushPendingSendsDrag(t *testing.T) {
	f := newFixture(t, memory.Options{})

	h := f.surface.Draw(rect(10, 10))
	f.settle()
	id, _ := f.adapter.IdentifierOf(h)

	require.NoError(t, f.surface.Move(h, models.At(25, 25), true))
	f.settle()
	require.Equal(t, 1, f.out.count())

	f.adapter.FlushPending()
	f.doc.Flush()

	require.Equal(t, 2, f.out.count())
	assert.Equal(t, models.At(25, 25), f.out.last(t).Entries[0].Fields.Geometry)
	assert.Equal(t, PhaseSynced, f.adapter.Phase(id))

	// сработавший позже таймер ничего не отправляет
	f.clock.Advance(DefaultDebounce)
	f.settle()
	assert.Equal(t, 2, f.out.count())
}

func TestAdapter_MaxWaitBoundsLongDrag(t *testing.T) {
	f := newFixture(t, memory.Options{})

	h := f.surface.Draw(rect(0, 0))
	f.settle()

	// 40 шагов по 10ms: пауза ни разу не достигает Debounce
	for i := 1; i <= 40; i++ {
		require.NoError(t, f.surface.Move(h, models.At(float64(i), 0), true))
		f.settle()
		f.clock.Advance(10 * time.Millisecond)
		f.settle()
	}

	assert.GreaterOrEqual(t, f.out.count(), 2, "long drag must be sent before it ends")
}

func TestAdapter_DiscreteEventFlushesPendingDrag(t *testing.T) {
	f := newFixture(t, memory.Options{})

	h := f.surface.Draw(rect(0, 0))
	f.settle()

	require.NoError(t, f.surface.Move(h, models.At(5, 5), true))
	require.NoError(t, f.surface.Move(h, models.At(6, 6), false))
	f.settle()

	require.Equal(t, 2, f.out.count())
	assert.Equal(t, models.At(6, 6), f.out.last(t).Entries[0].Fields.Geometry)

	f.clock.Advance(time.Second)
	f.settle()
	assert.Equal(t, 2, f.out.count(), "cancelled debounce must not fire")
}

func TestAdapter_LocalDeletePropagates(t *testing.T) {
	f := newFixture(t, memory.Options{})

	h := f.surface.Draw(rect(0, 0))
	f.settle()
	id, _ := f.adapter.IdentifierOf(h)

	require.NoError(t, f.surface.Delete(h))
	f.settle()

	assert.False(t, f.doc.Has(id))
	assert.Equal(t, PhaseAbsent, f.adapter.Phase(id))
	require.Equal(t, 2, f.out.count())
	assert.True(t, f.out.last(t).Entries[0].Deleted)
}

func TestAdapter_RemoteObjectMaterializedWithoutEcho(t *testing.T) {
	f := newFixture(t, memory.Options{})
	peer := newPeer(t)

	f.remote(t, peer, func() { require.NoError(t, peer.ApplyLocalChange("o1", rect(10, 10))) })
	h := f.waitHandle(t, "o1")

	fields, ok := f.surface.Shape(h)
	require.True(t, ok)
	assert.Equal(t, models.At(10, 10), fields.Geometry)
	assert.True(t, f.surface.Locked(h), "materialized objects are locked")
	assert.True(t, f.adapter.RemoteOrigin("o1"))

	f.clock.Advance(DefaultGrace)
	f.settle()

	assert.False(t, f.adapter.RemoteOrigin("o1"))
	assert.Equal(t, PhaseSynced, f.adapter.Phase("o1"))
	assert.Zero(t, f.out.count(), "remote object must not be echoed")
}

func TestAdapter_RemoteUpdateWithoutEcho(t *testing.T) {
	f := newFixture(t, memory.Options{})
	peer := newPeer(t)

	f.remote(t, peer, func() { require.NoError(t, peer.ApplyLocalChange("o1", rect(10, 10))) })
	h := f.waitHandle(t, "o1")
	f.clock.Advance(DefaultGrace)
	f.settle()

	f.remote(t, peer, func() { require.NoError(t, peer.ApplyLocalChange("o1", rect(50, 50))) })
	f.settle()

	fields, _ := f.surface.Shape(h)
	assert.Equal(t, models.At(50, 50), fields.Geometry)
	assert.Equal(t, PhaseRemotelyModified, f.adapter.Phase("o1"))

	f.clock.Advance(DefaultGrace)
	f.settle()

	assert.Equal(t, PhaseSynced, f.adapter.Phase("o1"))
	assert.Zero(t, f.out.count())
}

func TestAdapter_RemoteDeleteRemovesObject(t *testing.T) {
	f := newFixture(t, memory.Options{})
	peer := newPeer(t)

	f.remote(t, peer, func() { require.NoError(t, peer.ApplyLocalChange("o1", rect(10, 10))) })
	h := f.waitHandle(t, "o1")

	f.remote(t, peer, func() { require.NoError(t, peer.ApplyLocalDelete("o1")) })

	_, ok := f.surface.Shape(h)
	assert.False(t, ok)
	_, mapped := f.adapter.HandleOf("o1")
	assert.False(t, mapped)
	assert.Zero(t, f.out.count(), "remote delete must not be echoed")
}

func TestAdapter_MaterializationFailureSkipsObject(t *testing.T) {
	f := newFixture(t, memory.Options{Kinds: []string{models.KindRect}})
	peer := newPeer(t)

	f.remote(t, peer, func() {
		require.NoError(t, peer.ApplyLocalChange("bad", models.Fields{Kind: "hologram"}))
		require.NoError(t, peer.ApplyLocalChange("good", rect(1, 1)))
	})

	f.waitHandle(t, "good")
	f.adapter.Reconcile()
	f.adapter.Sync()

	_, ok := f.adapter.HandleOf("bad")
	assert.False(t, ok)
	assert.Equal(t, 1, f.surface.Len())
	assert.True(t, f.doc.Has("bad"), "document keeps the object")
}

func TestAdapter_RemoteUpdateDeferredDuringDrag(t *testing.T) {
	f := newFixture(t, memory.Options{})
	peer := newPeer(t)

	h := f.surface.Draw(rect(0, 0))
	f.settle()
	id, _ := f.adapter.IdentifierOf(h)

	// peer видит объект
	state, err := f.doc.EncodeState()
	require.NoError(t, err)
	_, err = peer.ApplyRemoteDelta(state)
	require.NoError(t, err)

	require.NoError(t, f.surface.Move(h, models.At(5, 5), true))
	f.settle()

	f.remote(t, peer, func() { require.NoError(t, peer.ApplyLocalChange(id, rect(99, 99))) })

	fields, _ := f.surface.Shape(h)
	assert.Equal(t, models.At(5, 5), fields.Geometry, "local manipulation is not interrupted")

	f.clock.Advance(DefaultDebounce)
	f.settle()

	got, ok := f.doc.Get(id)
	require.True(t, ok)
	assert.Equal(t, models.At(5, 5), got.Geometry, "local change wins")
	fields, _ = f.surface.Shape(h)
	assert.Equal(t, models.At(5, 5), fields.Geometry)
}

func TestAdapter_CorruptStateRecreatesObject(t *testing.T) {
	f := newFixture(t, memory.Options{})
	peer := newPeer(t)

	f.remote(t, peer, func() { require.NoError(t, peer.ApplyLocalChange("o1", rect(10, 10))) })
	h := f.waitHandle(t, "o1")

	f.surface.Forget(h) // объект исчез без события

	f.remote(t, peer, func() { require.NoError(t, peer.ApplyLocalChange("o1", rect(20, 20))) })

	var recreated scene.Handle
	require.Eventually(t, func() bool {
		var ok bool
		recreated, ok = f.adapter.HandleOf("o1")
		return ok && recreated != h
	}, time.Second, time.Millisecond)

	fields, ok := f.surface.Shape(recreated)
	require.True(t, ok)
	assert.Equal(t, models.At(20, 20), fields.Geometry)
}

func TestAdapter_RemoteContentChangeRecreatesObject(t *testing.T) {
	f := newFixture(t, memory.Options{})
	peer := newPeer(t)

	note := models.Fields{Kind: models.KindText, Geometry: models.At(3, 3), Payload: []byte("draft")}
	f.remote(t, peer, func() { require.NoError(t, peer.ApplyLocalChange("o1", note)) })
	h := f.waitHandle(t, "o1")
	f.clock.Advance(DefaultGrace)
	f.settle()

	edited := note.Clone()
	edited.Payload = []byte("final")
	f.remote(t, peer, func() { require.NoError(t, peer.ApplyLocalChange("o1", edited)) })

	var recreated scene.Handle
	require.Eventually(t, func() bool {
		var ok bool
		recreated, ok = f.adapter.HandleOf("o1")
		return ok && recreated != h
	}, time.Second, time.Millisecond)
	f.adapter.Sync()

	_, ok := f.surface.Shape(h)
	assert.False(t, ok, "stale object removed")
	fields, ok := f.surface.Shape(recreated)
	require.True(t, ok)
	assert.True(t, edited.Equal(fields))
	assert.Equal(t, 1, f.surface.Len())
	assert.Zero(t, f.out.count(), "recreation must not be echoed")
}

func TestAdapter_IdentifierCollisionDropsDuplicate(t *testing.T) {
	fc := clock.Fake(time.Unix(1700000000, 0))
	surface := memory.New(memory.Options{})
	doc := document.New(document.Options{Clock: fc, Logger: testLogger, NodeID: "local"})
	a := New(surface, doc, Options{
		Clock:  fc,
		Logger: testLogger,
		NewID:  func() string { return "same" },
	})
	t.Cleanup(func() {
		a.Close()
		doc.Close()
	})

	first := surface.Draw(rect(1, 1))
	a.Sync()
	doc.Flush()
	require.True(t, doc.Has("same"))

	second := surface.Draw(rect(2, 2))
	a.Sync()
	doc.Flush()

	h, ok := a.HandleOf("same")
	require.True(t, ok)
	assert.Equal(t, first, h, "existing mapping is kept")
	_, ok = a.IdentifierOf(second)
	assert.False(t, ok)
	_, ok = surface.Shape(second)
	assert.False(t, ok, "duplicate is removed from the surface")
	assert.Equal(t, 1, surface.Len())

	got, ok := doc.Get("same")
	require.True(t, ok)
	assert.Equal(t, models.At(1, 1), got.Geometry, "document object is not overwritten")
	assert.Empty(t, a.EnsureIdentifier(second))
}

func TestAdapter_ReconcileLeavesLocalOnlyObjects(t *testing.T) {
	f := newFixture(t, memory.Options{})

	// документ отклоняет запись: объект остается LocalOnly
	f.doc.Close()
	h := f.surface.Draw(rect(0, 0))
	f.adapter.Sync()

	id, ok := f.adapter.IdentifierOf(h)
	require.True(t, ok)
	assert.Equal(t, PhaseLocalOnly, f.adapter.Phase(id))

	f.adapter.Reconcile()
	f.adapter.Sync()

	_, ok = f.surface.Shape(h)
	assert.True(t, ok, "local-only object is not removed by reconcile")
}

func TestAdapter_CloseStopsCallbacks(t *testing.T) {
	f := newFixture(t, memory.Options{})

	h := f.surface.Draw(rect(0, 0))
	f.settle()
	require.NoError(t, f.surface.Move(h, models.At(1, 1), true))
	f.settle()

	f.adapter.Close()
	f.adapter.Close()

	f.clock.Advance(time.Second)
	f.surface.Draw(rect(5, 5))
	f.doc.Flush()

	assert.Equal(t, 1, f.out.count(), "no updates after Close")
	assert.Empty(t, f.adapter.EnsureIdentifier(h))
	assert.Equal(t, PhaseAbsent, f.adapter.Phase("o1"))
}

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name  string
		a, b  models.Geometry
		equal bool
	}{
		{name: "same", a: models.At(1, 2), b: models.At(1, 2), equal: true},
		{name: "signed zero", a: models.Geometry{X: 0}, b: models.Geometry{X: math.Copysign(0, -1)}, equal: true},
		{name: "moved", a: models.At(1, 2), b: models.At(1, 3)},
		{name: "rotated", a: models.Geometry{Rotation: 0}, b: models.Geometry{Rotation: 0.1}},
		{name: "swapped axes", a: models.At(1, 2), b: models.At(2, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, Fingerprint(tt.a) == Fingerprint(tt.b))
		})
	}
}
