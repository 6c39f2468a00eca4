package crdt

import (
	"iter"
	"sync"

	"github.com/iudanet/boardsync/internal/models"
)

// LWWMap представляет Last-Write-Wins Map: отображение id объекта в его
// последнюю версию. Порядок обхода совпадает с порядком первой вставки ключа.
//
// Удаление хранится как tombstone (Deleted = true), поэтому слияние
// коммутативно и идемпотентно в том числе для удалений.
type LWWMap struct {
	elements map[string]*models.ObjectEntry // map[id]entry
	order    []string                       // порядок вставки ключей
	mu       sync.RWMutex
}

// NewLWWMap создает пустой LWW-Map.
func NewLWWMap() *LWWMap {
	return &LWWMap{
		elements: make(map[string]*models.ObjectEntry),
	}
}

// Apply применяет запись по правилу LWW.
// Возвращает true, если состояние изменилось.
func (m *LWWMap) Apply(entry *models.ObjectEntry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.applyLocked(entry)
}

func (m *LWWMap) applyLocked(entry *models.ObjectEntry) bool {
	existing, exists := m.elements[entry.ID]
	if !exists {
		m.elements[entry.ID] = entry.Clone()
		m.order = append(m.order, entry.ID)
		return true
	}

	// Существующая версия новее или совпадает - не обновляем
	if !entry.IsNewerThan(existing) {
		return false
	}

	m.elements[entry.ID] = entry.Clone()
	return true
}

// ApplyAll применяет пачку записей под одной блокировкой.
// Возвращает id тех записей, которые изменили состояние, в порядке пачки.
func (m *LWWMap) ApplyAll(entries []*models.ObjectEntry) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changed []string
	for _, entry := range entries {
		if m.applyLocked(entry) {
			changed = append(changed, entry.ID)
		}
	}

	return changed
}

// Get возвращает живую (не удаленную) запись по ID или nil.
func (m *LWWMap) Get(id string) *models.ObjectEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.elements[id]
	if !exists || entry.Deleted {
		return nil
	}

	return entry.Clone()
}

// Lookup возвращает запись по ID, включая tombstone.
func (m *LWWMap) Lookup(id string) (*models.ObjectEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.elements[id]
	if !exists {
		return nil, false
	}

	return entry.Clone(), true
}

// Contains проверяет наличие живой записи.
func (m *LWWMap) Contains(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.elements[id]
	return exists && !entry.Deleted
}

// Live возвращает ленивую последовательность живых записей в порядке вставки.
// Снимок берется в момент начала обхода, поэтому последовательность
// конечна и может перезапускаться.
func (m *LWWMap) Live() iter.Seq[*models.ObjectEntry] {
	return func(yield func(*models.ObjectEntry) bool) {
		for _, entry := range m.snapshot(false) {
			if !yield(entry) {
				return
			}
		}
	}
}

// All возвращает все записи, включая tombstones. Используется для
// передачи полного состояния другим узлам.
func (m *LWWMap) All() []*models.ObjectEntry {
	return m.snapshot(true)
}

func (m *LWWMap) snapshot(withDeleted bool) []*models.ObjectEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*models.ObjectEntry, 0, len(m.order))
	for _, id := range m.order {
		entry := m.elements[id]
		if entry.Deleted && !withDeleted {
			continue
		}
		result = append(result, entry.Clone())
	}

	return result
}

// Merge объединяет текущий map с другим.
// Операция коммутативна и идемпотентна.
func (m *LWWMap) Merge(other *LWWMap) {
	m.ApplyAll(other.All())
}

// Len возвращает количество живых записей.
func (m *LWWMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, entry := range m.elements {
		if !entry.Deleted {
			count++
		}
	}

	return count
}

// TotalLen возвращает общее количество слотов (включая tombstones).
func (m *LWWMap) TotalLen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.elements)
}

// MaxTimestamp возвращает максимальный Lamport timestamp среди записей.
func (m *LWWMap) MaxTimestamp() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var maxTs int64
	for _, entry := range m.elements {
		if entry.Timestamp > maxTs {
			maxTs = entry.Timestamp
		}
	}

	return maxTs
}
