package crdt

import (
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/boardsync/internal/models"
)

func createTestEntry(id, nodeID string, timestamp int64, x float64, deleted bool) *models.ObjectEntry {
	return &models.ObjectEntry{
		ID:     id,
		NodeID: nodeID,
		Fields: models.Fields{
			Kind:     models.KindRect,
			Geometry: models.At(x, x),
		},
		Timestamp: timestamp,
		Deleted:   deleted,
	}
}

func liveIDs(m *LWWMap) []string {
	var ids []string
	for entry := range m.Live() {
		ids = append(ids, entry.ID)
	}
	return ids
}

func TestNewLWWMap(t *testing.T) {
	m := NewLWWMap()

	require.NotNil(t, m)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, m.TotalLen())
}

func TestLWWMap_Apply(t *testing.T) {
	tests := []struct {
		name            string
		initial         *models.ObjectEntry
		incoming        *models.ObjectEntry
		expectedApplied bool
		expectedX       float64
	}{
		{
			name:            "new entry is applied",
			incoming:        createTestEntry("o1", "node1", 10, 1, false),
			expectedApplied: true,
			expectedX:       1,
		},
		{
			name:            "newer timestamp wins",
			initial:         createTestEntry("o1", "node1", 10, 1, false),
			incoming:        createTestEntry("o1", "node1", 20, 2, false),
			expectedApplied: true,
			expectedX:       2,
		},
		{
			name:            "older timestamp is ignored",
			initial:         createTestEntry("o1", "node1", 20, 1, false),
			incoming:        createTestEntry("o1", "node1", 10, 2, false),
			expectedApplied: false,
			expectedX:       1,
		},
		{
			name:            "same timestamp, greater node wins",
			initial:         createTestEntry("o1", "node1", 10, 1, false),
			incoming:        createTestEntry("o1", "node2", 10, 2, false),
			expectedApplied: true,
			expectedX:       2,
		},
		{
			name:            "duplicate entry is a no-op",
			initial:         createTestEntry("o1", "node1", 10, 1, false),
			incoming:        createTestEntry("o1", "node1", 10, 1, false),
			expectedApplied: false,
			expectedX:       1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewLWWMap()
			if tt.initial != nil {
				m.Apply(tt.initial)
			}

			applied := m.Apply(tt.incoming)
			assert.Equal(t, tt.expectedApplied, applied)

			entry := m.Get("o1")
			require.NotNil(t, entry)
			assert.Equal(t, tt.expectedX, entry.Fields.Geometry.X)
		})
	}
}

func TestLWWMap_Tombstone(t *testing.T) {
	m := NewLWWMap()
	m.Apply(createTestEntry("o1", "node1", 10, 1, false))

	// Удаление с большим timestamp
	assert.True(t, m.Apply(createTestEntry("o1", "node2", 11, 1, true)))
	assert.Nil(t, m.Get("o1"))
	assert.False(t, m.Contains("o1"))
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 1, m.TotalLen(), "tombstone must be kept")

	entry, ok := m.Lookup("o1")
	require.True(t, ok)
	assert.True(t, entry.Deleted)

	// Запоздавшее старое обновление не воскрешает объект
	assert.False(t, m.Apply(createTestEntry("o1", "node1", 10, 5, false)))
	assert.False(t, m.Contains("o1"))

	// Пересоздание с более новым timestamp
	assert.True(t, m.Apply(createTestEntry("o1", "node1", 12, 7, false)))
	assert.True(t, m.Contains("o1"))
}

func TestLWWMap_Live_InsertionOrder(t *testing.T) {
	m := NewLWWMap()
	m.Apply(createTestEntry("c", "n", 1, 0, false))
	m.Apply(createTestEntry("a", "n", 2, 0, false))
	m.Apply(createTestEntry("b", "n", 3, 0, false))
	m.Apply(createTestEntry("a", "n", 4, 1, false)) // обновление не меняет порядок
	m.Apply(createTestEntry("c", "n", 5, 0, true))

	assert.Equal(t, []string{"a", "b"}, liveIDs(m))
	// Последовательность перезапускается
	assert.Equal(t, []string{"a", "b"}, liveIDs(m))

	all := m.All()
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.True(t, all[0].Deleted)
}

func TestLWWMap_Live_EarlyBreak(t *testing.T) {
	m := NewLWWMap()
	for i := 0; i < 5; i++ {
		m.Apply(createTestEntry(strconv.Itoa(i), "n", int64(i+1), 0, false))
	}

	count := 0
	for range m.Live() {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestLWWMap_ApplyAll(t *testing.T) {
	m := NewLWWMap()
	m.Apply(createTestEntry("o1", "node1", 10, 1, false))

	changed := m.ApplyAll([]*models.ObjectEntry{
		createTestEntry("o1", "node1", 5, 9, false),
		createTestEntry("o2", "node1", 1, 2, false),
		createTestEntry("o3", "node1", 1, 3, false),
	})

	assert.Equal(t, []string{"o2", "o3"}, changed)
	assert.Equal(t, 3, m.Len())
}

func TestLWWMap_Merge_Commutativity(t *testing.T) {
	setA := NewLWWMap()
	setA.Apply(createTestEntry("o1", "node1", 10, 1, false))
	setA.Apply(createTestEntry("o2", "node1", 20, 2, false))

	setB := NewLWWMap()
	setB.Apply(createTestEntry("o1", "node2", 15, 3, false))
	setB.Apply(createTestEntry("o3", "node2", 25, 4, true))

	// A ∪ B
	ab := NewLWWMap()
	ab.Merge(setA)
	ab.Merge(setB)

	// B ∪ A
	ba := NewLWWMap()
	ba.Merge(setB)
	ba.Merge(setA)

	sortByID := func(entries []*models.ObjectEntry) []*models.ObjectEntry {
		slices.SortFunc(entries, func(x, y *models.ObjectEntry) int {
			if x.ID < y.ID {
				return -1
			}
			if x.ID > y.ID {
				return 1
			}
			return 0
		})
		return entries
	}

	assert.Equal(t, sortByID(ab.All()), sortByID(ba.All()))
	assert.Equal(t, float64(3), ab.Get("o1").Fields.Geometry.X)
}

func TestLWWMap_Merge_Idempotency(t *testing.T) {
	source := NewLWWMap()
	source.Apply(createTestEntry("o1", "node1", 10, 1, false))
	source.Apply(createTestEntry("o2", "node1", 11, 2, true))

	target := NewLWWMap()
	target.Merge(source)
	first := target.All()

	target.Merge(source)
	target.Merge(source)

	assert.Equal(t, first, target.All())
}

func TestLWWMap_MaxTimestamp(t *testing.T) {
	m := NewLWWMap()
	assert.Equal(t, int64(0), m.MaxTimestamp())

	m.Apply(createTestEntry("o1", "n", 3, 0, false))
	m.Apply(createTestEntry("o2", "n", 42, 0, true))
	m.Apply(createTestEntry("o3", "n", 7, 0, false))

	assert.Equal(t, int64(42), m.MaxTimestamp())
}

func TestLWWMap_ConcurrentApply(t *testing.T) {
	m := NewLWWMap()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(node int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := "o" + strconv.Itoa(j)
				m.Apply(createTestEntry(id, "node"+strconv.Itoa(node), int64(j), float64(node), false))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, m.Len())
	// Для каждого объекта побеждает node9 (наибольший NodeID при равных timestamp)
	for entry := range m.Live() {
		assert.Equal(t, "node9", entry.NodeID)
	}
}

func BenchmarkLWWMap_Apply(b *testing.B) {
	m := NewLWWMap()
	for i := 0; i < b.N; i++ {
		m.Apply(createTestEntry("o"+strconv.Itoa(i%1000), "node", int64(i), 0, false))
	}
}
