// Package document реализует реплицируемый документ доски: LWW-отображение
// id объекта -> состояние объекта, которое превращает локальные изменения
// в бинарные обновления и применяет обновления от других участников.
package document

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/boardsync/internal/clock"
	"github.com/iudanet/boardsync/internal/codec"
	"github.com/iudanet/boardsync/internal/crdt"
	"github.com/iudanet/boardsync/internal/models"
)

// DefaultFrameInterval длительность одного кадра анимации. Все локальные
// записи внутри кадра уходят в сеть одним обновлением.
const DefaultFrameInterval = 16 * time.Millisecond

var (
	// ErrClosed документ закрыт, изменения больше не принимаются
	ErrClosed = errors.New("document is closed")
	// ErrObjectNotFound объекта нет в документе (или он удален)
	ErrObjectNotFound = errors.New("object not found")
)

// Options параметры документа
type Options struct {
	Clock         clock.Clock
	Logger        *slog.Logger
	NodeID        string        // пустой NodeID - сгенерировать UUID
	FrameInterval time.Duration // <= 0 - отправлять каждое изменение сразу
}

// Doc реплицируемый документ. Изменяется только через ApplyLocalChange /
// ApplyLocalDelete и ApplyRemoteDelta.
type Doc struct {
	timers     clock.Clock
	flushTimer clock.Timer
	state      *crdt.LWWMap
	lamport    *crdt.LamportClock
	logger     *slog.Logger
	pending    map[string]*models.ObjectEntry
	listeners  map[int]func([]byte)
	pendingIDs []string
	frame      time.Duration
	nextID     int
	txDepth    int
	closed     bool
	mu         sync.Mutex
}

// New создает пустой документ.
func New(opts Options) *Doc {
	lamport := crdt.NewLamportClock()
	if opts.NodeID != "" {
		lamport = crdt.NewLamportClockWithNodeID(opts.NodeID)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Doc{
		timers:    opts.Clock,
		state:     crdt.NewLWWMap(),
		lamport:   lamport,
		logger:    opts.Logger,
		pending:   make(map[string]*models.ObjectEntry),
		listeners: make(map[int]func([]byte)),
		frame:     opts.FrameInterval,
	}
}

// NodeID возвращает идентификатор узла, которым подписываются локальные записи.
func (d *Doc) NodeID() string {
	return d.lamport.NodeID()
}

// ApplyLocalChange записывает группу полей объекта id целиком (LWW).
// Изменения внутри одного кадра или одной транзакции объединяются
// в одно исходящее обновление.
func (d *Doc) ApplyLocalChange(id string, fields models.Fields) error {
	if id == "" {
		return fmt.Errorf("apply local change: empty object id")
	}

	return d.writeLocal(id, fields, false)
}

// ApplyLocalDelete удаляет объект id, записывая tombstone.
func (d *Doc) ApplyLocalDelete(id string) error {
	existing := d.state.Get(id)
	if existing == nil {
		return fmt.Errorf("delete %q: %w", id, ErrObjectNotFound)
	}

	return d.writeLocal(id, existing.Fields, true)
}

func (d *Doc) writeLocal(id string, fields models.Fields, deleted bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	entry := &models.ObjectEntry{
		ID:        id,
		NodeID:    d.lamport.NodeID(),
		Fields:    fields.Clone(),
		Timestamp: d.lamport.Tick(),
		UpdatedAt: d.timers.Now().UnixMilli(),
		Deleted:   deleted,
	}

	// Tick больше любого увиденного timestamp, поэтому локальная запись всегда применяется
	d.state.Apply(entry)

	if _, staged := d.pending[id]; !staged {
		d.pendingIDs = append(d.pendingIDs, id)
	}
	d.pending[id] = entry

	if d.txDepth == 0 {
		d.scheduleFlushLocked()
	}

	return nil
}

func (d *Doc) scheduleFlushLocked() {
	if d.frame <= 0 {
		d.flushLocked()
		return
	}
	if d.flushTimer == nil {
		d.flushTimer = d.timers.AfterFunc(d.frame, d.Flush)
	}
}

// Transact выполняет fn как одну транзакцию: все записи внутри fn
// отправляются одним обновлением сразу после завершения fn.
func (d *Doc) Transact(fn func() error) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.txDepth++
	d.mu.Unlock()

	err := fn()

	d.mu.Lock()
	d.txDepth--
	if d.txDepth == 0 && !d.closed {
		d.flushLocked()
	}
	d.mu.Unlock()

	return err
}

// Flush немедленно отправляет накопленные локальные изменения.
func (d *Doc) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.flushLocked()
}

// flushLocked кодирует накопленные записи и вызывает слушателей.
// Слушатели вызываются под блокировкой, чтобы обновления уходили строго
// в порядке их формирования; слушатель не должен обращаться к документу.
func (d *Doc) flushLocked() {
	if d.flushTimer != nil {
		d.flushTimer.Stop()
		d.flushTimer = nil
	}
	if len(d.pendingIDs) == 0 {
		return
	}

	delta := &models.Delta{
		Origin:  d.lamport.NodeID(),
		Entries: make([]*models.ObjectEntry, 0, len(d.pendingIDs)),
	}
	for _, id := range d.pendingIDs {
		delta.Entries = append(delta.Entries, d.pending[id])
	}
	d.pending = make(map[string]*models.ObjectEntry)
	d.pendingIDs = nil

	payload, err := codec.Encode(delta)
	if err != nil {
		d.logger.Error("Failed to encode local delta", "entries", len(delta.Entries), "error", err)
		return
	}

	for _, listener := range d.listeners {
		listener(payload)
	}
}

// ApplyRemoteDelta декодирует обновление другого участника и сливает его
// в документ. Операция идемпотентна и коммутативна. Слушатели OnDelta
// не вызываются. Возвращает id объектов, состояние которых изменилось.
func (d *Doc) ApplyRemoteDelta(payload []byte) ([]string, error) {
	delta, err := codec.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("apply remote delta: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	for _, entry := range delta.Entries {
		d.lamport.Witness(entry.Timestamp)
	}

	return d.state.ApplyAll(delta.Entries), nil
}

// OnDelta регистрирует слушателя локально сформированных обновлений.
// Возвращает функцию отписки.
func (d *Doc) OnDelta(listener func([]byte)) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	d.listeners[id] = listener

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners, id)
	}
}

// Entries возвращает ленивую последовательность (id, поля) живых объектов
// в порядке вставки. Последовательность конечна и перезапускаема.
func (d *Doc) Entries() iter.Seq2[string, models.Fields] {
	return func(yield func(string, models.Fields) bool) {
		for entry := range d.state.Live() {
			if !yield(entry.ID, entry.Fields) {
				return
			}
		}
	}
}

// EncodeState кодирует полное состояние (включая tombstones) одним
// обновлением. Используется для догоняющей синхронизации после reconnect
// и для сохранения снимка.
func (d *Doc) EncodeState() ([]byte, error) {
	delta := &models.Delta{
		Origin:  d.lamport.NodeID(),
		Entries: d.state.All(),
	}

	payload, err := codec.Encode(delta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document state: %w", err)
	}

	return payload, nil
}

// Has проверяет наличие живого объекта.
func (d *Doc) Has(id string) bool {
	return d.state.Contains(id)
}

// Get возвращает поля живого объекта.
func (d *Doc) Get(id string) (models.Fields, bool) {
	entry := d.state.Get(id)
	if entry == nil {
		return models.Fields{}, false
	}
	return entry.Fields, true
}

// Len возвращает количество живых объектов.
func (d *Doc) Len() int {
	return d.state.Len()
}

// TotalLen возвращает количество записей вместе с tombstones.
func (d *Doc) TotalLen() int {
	return d.state.TotalLen()
}

// Close останавливает таймер кадра и отписывает слушателей.
// После Close ни один слушатель не вызывается.
func (d *Doc) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true

	if d.flushTimer != nil {
		d.flushTimer.Stop()
		d.flushTimer = nil
	}
	d.pending = make(map[string]*models.ObjectEntry)
	d.pendingIDs = nil
	d.listeners = make(map[int]func([]byte))
}
