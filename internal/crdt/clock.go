package crdt

import (
	"sync"

	"github.com/google/uuid"
)

// LamportClock представляет логические часы Лампорта для упорядочивания записей
// документа между участниками комнаты без синхронизации физического времени.
type LamportClock struct {
	nodeID  string     // уникальный идентификатор узла
	counter int64      // монотонно возрастающий счетчик
	mu      sync.Mutex // мьютекс для потокобезопасности
}

// NewLamportClock создает часы со случайным идентификатором узла (UUID).
func NewLamportClock() *LamportClock {
	return NewLamportClockWithNodeID(uuid.NewString())
}

// NewLamportClockWithNodeID создает часы с заданным идентификатором узла.
// Используется в тестах и при восстановлении состояния.
func NewLamportClockWithNodeID(nodeID string) *LamportClock {
	return &LamportClock{nodeID: nodeID}
}

// Tick увеличивает счетчик и возвращает новый timestamp для локальной записи.
func (lc *LamportClock) Tick() int64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.counter++
	return lc.counter
}

// Witness учитывает timestamp, полученный от другого узла.
// Следующий Tick гарантированно будет больше любого увиденного значения,
// поэтому локальная запись всегда побеждает уже известные версии.
func (lc *LamportClock) Witness(remote int64) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if remote > lc.counter {
		lc.counter = remote
	}
}

// Timestamp возвращает текущее значение счетчика без изменения.
func (lc *LamportClock) Timestamp() int64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	return lc.counter
}

// NodeID возвращает идентификатор узла.
func (lc *LamportClock) NodeID() string {
	return lc.nodeID
}
