package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/iudanet/boardsync/internal/clock"
	"github.com/iudanet/boardsync/internal/models"
)

// Phase состояние объекта с точки зрения адаптера:
// Absent -> LocalOnly -> Synced -> {LocallyModified, RemotelyModified} -> Synced -> Absent
type Phase int

const (
	PhaseAbsent Phase = iota
	PhaseLocalOnly
	PhaseSynced
	PhaseLocallyModified
	PhaseRemotelyModified
)

func (p Phase) String() string {
	switch p {
	case PhaseAbsent:
		return "absent"
	case PhaseLocalOnly:
		return "local-only"
	case PhaseSynced:
		return "synced"
	case PhaseLocallyModified:
		return "locally-modified"
	case PhaseRemotelyModified:
		return "remotely-modified"
	default:
		return "unknown"
	}
}

// objectState запись side-table адаптера (id -> транзитное состояние).
// Объекты поверхности не несут метаданных синхронизации.
type objectState struct {
	pendingSince time.Time   // начало текущей серии непрерывных событий
	debounce     clock.Timer // отложенная отправка непрерывного действия
	grace        clock.Timer // снятие RemoteOriginFlag
	fingerprint  uint64      // последний увиденный fingerprint геометрии
	debounceGen  int
	graceGen     int
	phase        Phase
	remote       bool // RemoteOriginFlag: текущее изменение вызвано удаленным обновлением
	deferred     bool // удаленное обновление отложено до отправки локального
}

func (st *objectState) stopTimers() {
	if st.debounce != nil {
		st.debounce.Stop()
		st.debounce = nil
	}
	if st.grace != nil {
		st.grace.Stop()
		st.grace = nil
	}
}

// materialization асинхронное создание объекта из документа
type materialization struct {
	cancel context.CancelFunc
	fields models.Fields
}

// taskQueue неограниченная очередь задач для единственного потребителя.
// Неограниченная, потому что обработчики событий поверхности ставят задачи
// в очередь изнутри цикла, когда адаптер сам меняет поверхность.
type taskQueue struct {
	ready chan struct{}
	tasks []func()
	mu    sync.Mutex
}

func newTaskQueue() *taskQueue {
	return &taskQueue{ready: make(chan struct{}, 1)}
}

func (q *taskQueue) push(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *taskQueue) drain() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	tasks := q.tasks
	q.tasks = nil
	return tasks
}
