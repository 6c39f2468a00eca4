// Package adapter связывает локальную поверхность рисования с реплицируемым
// документом. Локальные действия пользователя превращаются в записи
// документа, а удаленные изменения документа применяются к поверхности
// без повторной отправки (no-echo).
//
// Все состояние адаптера принадлежит одной горутине-циклу. События
// поверхности, таймеры и запросы сверки ставятся в очередь задач, поэтому
// адаптер может менять поверхность, не опасаясь повторного входа из
// синхронных обработчиков событий.
package adapter

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iudanet/boardsync/internal/client/scene"
	"github.com/iudanet/boardsync/internal/clock"
	"github.com/iudanet/boardsync/internal/models"
)

const (
	// DefaultDebounce пауза после последнего непрерывного события,
	// после которой изменение отправляется
	DefaultDebounce = 40 * time.Millisecond
	// DefaultMaxWait максимальная задержка отправки при длинном перетаскивании
	DefaultMaxWait = 200 * time.Millisecond
	// DefaultGrace окно, в течение которого события поверхности по объекту
	// считаются следствием удаленного обновления
	DefaultGrace = 50 * time.Millisecond

	maxIDAttempts = 8
)

// Document часть реплицируемого документа, которая нужна адаптеру.
type Document interface {
	ApplyLocalChange(id string, fields models.Fields) error
	ApplyLocalDelete(id string) error
	Entries() iter.Seq2[string, models.Fields]
	Has(id string) bool
}

// Options параметры адаптера
type Options struct {
	Clock    clock.Clock
	Logger   *slog.Logger
	NewID    func() string // генератор идентификаторов; по умолчанию models.NewObjectID
	Debounce time.Duration
	MaxWait  time.Duration // <= 0 - без ограничения
	Grace    time.Duration
}

// Adapter синхронизирует поверхность с документом.
type Adapter struct {
	surface     scene.Surface
	doc         Document
	timers      clock.Clock
	ctx         context.Context
	logger      *slog.Logger
	newID       func() string
	cancel      context.CancelFunc
	unsubscribe func()
	queue       *taskQueue
	quit        chan struct{}
	done        chan struct{}

	// принадлежат циклу
	ids      map[scene.Handle]string
	handles  map[string]scene.Handle
	states   map[string]*objectState
	inflight map[string]*materialization
	failed   map[string]models.Fields

	debounce time.Duration
	maxWait  time.Duration
	grace    time.Duration

	closeOnce       sync.Once
	reconcileQueued atomic.Bool
	closed          atomic.Bool
}

// New создает адаптер и подписывается на события поверхности. Объекты,
// уже находящиеся на поверхности, отправляются в документ.
func New(surface scene.Surface, doc Document, opts Options) *Adapter {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = models.NewObjectID
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MaxWait == 0 {
		opts.MaxWait = DefaultMaxWait
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &Adapter{
		surface:  surface,
		doc:      doc,
		timers:   opts.Clock,
		ctx:      ctx,
		cancel:   cancel,
		logger:   opts.Logger.With("component", "adapter"),
		newID:    opts.NewID,
		queue:    newTaskQueue(),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		ids:      make(map[scene.Handle]string),
		handles:  make(map[string]scene.Handle),
		states:   make(map[string]*objectState),
		inflight: make(map[string]*materialization),
		failed:   make(map[string]models.Fields),
		debounce: opts.Debounce,
		maxWait:  opts.MaxWait,
		grace:    opts.Grace,
	}

	a.unsubscribe = surface.Subscribe(a.onSurfaceEvent)
	a.post(a.adoptExisting)

	go a.run()

	return a
}

func (a *Adapter) run() {
	defer close(a.done)

	for {
		select {
		case <-a.quit:
			return
		case <-a.queue.ready:
		}

		for _, task := range a.queue.drain() {
			if a.closed.Load() {
				return
			}
			task()
		}
	}
}

// post ставит задачу в очередь цикла. После Close возвращает false.
func (a *Adapter) post(task func()) bool {
	if a.closed.Load() {
		return false
	}
	a.queue.push(task)
	return true
}

// call выполняет fn в цикле и ждет завершения.
func (a *Adapter) call(fn func()) bool {
	finished := make(chan struct{})
	if !a.post(func() {
		fn()
		close(finished)
	}) {
		return false
	}

	select {
	case <-finished:
		return true
	case <-a.done:
		return false
	}
}

// EnsureIdentifier возвращает идентификатор объекта поверхности, назначая
// новый при первом обращении. Повторные вызовы возвращают тот же id.
// Пустая строка: адаптер закрыт или свободный id не найден (объект снят с поверхности).
func (a *Adapter) EnsureIdentifier(h scene.Handle) string {
	var id string
	a.call(func() { id = a.ensureIdentifier(h) })
	return id
}

// IdentifierOf возвращает id объекта поверхности, если он назначен.
func (a *Adapter) IdentifierOf(h scene.Handle) (string, bool) {
	var (
		id string
		ok bool
	)
	a.call(func() { id, ok = a.ids[h] })
	return id, ok
}

// HandleOf возвращает дескриптор поверхности для id.
func (a *Adapter) HandleOf(id string) (scene.Handle, bool) {
	var (
		h  scene.Handle
		ok bool
	)
	a.call(func() { h, ok = a.handles[id] })
	return h, ok
}

// Phase возвращает фазу жизненного цикла объекта.
func (a *Adapter) Phase(id string) Phase {
	phase := PhaseAbsent
	a.call(func() {
		if st, ok := a.states[id]; ok {
			phase = st.phase
		}
	})
	return phase
}

// RemoteOrigin сообщает, действует ли для объекта RemoteOriginFlag.
func (a *Adapter) RemoteOrigin(id string) bool {
	var remote bool
	a.call(func() {
		if st, ok := a.states[id]; ok {
			remote = st.remote
		}
	})
	return remote
}

// Objects возвращает снимок объектов поверхности, которым назначен id.
func (a *Adapter) Objects() []models.SceneObject {
	var objects []models.SceneObject
	a.call(func() {
		for _, h := range a.surface.Handles() {
			id, ok := a.ids[h]
			if !ok {
				continue
			}
			if fields, ok := a.surface.Shape(h); ok {
				objects = append(objects, models.SceneObject{ID: id, Fields: fields})
			}
		}
	})
	return objects
}

// Sync дожидается обработки всех задач, поставленных до вызова.
func (a *Adapter) Sync() {
	a.call(func() {})
}

// Close отписывается от поверхности, отменяет незавершенные создания
// объектов и останавливает таймеры. После возврата ни один колбэк адаптера
// не вызывается. Документ и поверхность не закрываются.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		a.unsubscribe()
		a.cancel()
		close(a.quit)
		<-a.done

		for _, st := range a.states {
			st.stopTimers()
		}
		for id, m := range a.inflight {
			m.cancel()
			delete(a.inflight, id)
		}

		a.logger.Debug("Adapter closed", "objects", len(a.states))
	})
}

func (a *Adapter) ensureIdentifier(h scene.Handle) string {
	if id, ok := a.ids[h]; ok {
		return id
	}

	id := a.newID()
	for attempt := 1; a.taken(id) && attempt < maxIDAttempts; attempt++ {
		id = a.newID()
	}
	if a.taken(id) {
		// объект документа остается при своем дескрипторе, дубликат снимается
		a.logger.Error("Identifier collision, removing local object",
			"object_id", id,
			"handle", h,
			"error", ErrCorruptLocalState,
		)
		_ = a.surface.Remove(h)
		return ""
	}

	a.ids[h] = id
	a.handles[id] = h
	a.states[id] = &objectState{phase: PhaseLocalOnly}

	return id
}

func (a *Adapter) taken(id string) bool {
	if _, ok := a.handles[id]; ok {
		return true
	}
	if _, ok := a.inflight[id]; ok {
		return true
	}
	return a.doc.Has(id)
}

// forget удаляет объект из side-table и таблиц соответствия.
func (a *Adapter) forget(id string) {
	if st, ok := a.states[id]; ok {
		st.stopTimers()
		delete(a.states, id)
	}
	if h, ok := a.handles[id]; ok {
		delete(a.ids, h)
		delete(a.handles, id)
	}
}
