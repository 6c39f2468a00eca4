// Package session собирает клиент доски: документ, адаптер поверхности,
// канал комнаты и локальный снимок состояния.
//
//	поверхность -> adapter -> document -(OnDelta)-> transport.Broadcast
//	transport.OnReceive -> document.ApplyRemoteDelta -> adapter.Reconcile -> поверхность
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/boardsync/internal/client/adapter"
	"github.com/iudanet/boardsync/internal/client/scene"
	"github.com/iudanet/boardsync/internal/client/storage"
	"github.com/iudanet/boardsync/internal/client/transport"
	"github.com/iudanet/boardsync/internal/clock"
	"github.com/iudanet/boardsync/internal/document"
	"github.com/iudanet/boardsync/internal/validation"
)

// DefaultSnapshotInterval период сохранения локального снимка
const DefaultSnapshotInterval = 30 * time.Second

// ErrClosed сессия закрыта
var ErrClosed = errors.New("session is closed")

// Options параметры сессии
type Options struct {
	Surface  scene.Surface
	Store    storage.SnapshotStorage // nil - без локального снимка
	Clock    clock.Clock
	Logger   *slog.Logger
	OnStatus func(transport.Status) // индикатор подключения

	Room   string
	NodeID string // пустой - сгенерировать

	Transport        transport.Options
	Adapter          adapter.Options
	FrameInterval    time.Duration // 0 - document.DefaultFrameInterval, < 0 - без объединения
	SnapshotInterval time.Duration // <= 0 - DefaultSnapshotInterval
}

// Session синхронизирует одну поверхность с одной комнатой.
type Session struct {
	doc       *document.Doc
	adapter   *adapter.Adapter
	channel   *transport.Channel
	store     storage.SnapshotStorage
	timers    clock.Clock
	logger    *slog.Logger
	snapshot  clock.Timer
	offDelta  func()
	room      string
	interval  time.Duration
	closeOnce sync.Once
	saveMu    sync.Mutex
	mu        sync.Mutex
	closed    bool
}

// Start восстанавливает снимок комнаты, подключается к relay-серверу и
// начинает синхронизацию. Возвращает transport.ErrRoomUnreachable, если
// сервер недоступен.
func Start(ctx context.Context, opts Options) (*Session, error) {
	if opts.Surface == nil {
		return nil, fmt.Errorf("session requires a surface")
	}
	if err := validation.ValidateRoomID(opts.Room); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FrameInterval == 0 {
		opts.FrameInterval = document.DefaultFrameInterval
	}
	if opts.SnapshotInterval <= 0 {
		opts.SnapshotInterval = DefaultSnapshotInterval
	}

	logger := opts.Logger.With("room", opts.Room)

	s := &Session{
		store:    opts.Store,
		timers:   opts.Clock,
		logger:   logger.With("component", "session"),
		room:     opts.Room,
		interval: opts.SnapshotInterval,
	}

	s.doc = document.New(document.Options{
		Clock:         opts.Clock,
		Logger:        logger,
		NodeID:        opts.NodeID,
		FrameInterval: opts.FrameInterval,
	})
	s.restore(ctx)

	adapterOpts := opts.Adapter
	adapterOpts.Clock = opts.Clock
	adapterOpts.Logger = logger
	s.adapter = adapter.New(opts.Surface, s.doc, adapterOpts)
	// объекты из снимка появляются на поверхности
	s.adapter.Reconcile()

	transportOpts := opts.Transport
	transportOpts.Logger = logger
	s.channel = transport.New(transportOpts)
	s.channel.OnReceive(s.onReceive)
	s.channel.OnConnect(s.onConnect)
	if opts.OnStatus != nil {
		s.channel.OnStatus(opts.OnStatus)
	}
	s.offDelta = s.doc.OnDelta(s.channel.Broadcast)

	if err := s.channel.Join(ctx, opts.Room); err != nil {
		s.offDelta()
		s.adapter.Close()
		s.doc.Close()
		_ = s.channel.Close()
		return nil, fmt.Errorf("failed to join room %s: %w", opts.Room, err)
	}

	if s.store != nil {
		s.scheduleSnapshot()
	}

	s.logger.Info("Session started", "node_id", s.doc.NodeID(), "objects", s.doc.Len())
	return s, nil
}

// restore применяет сохраненный снимок комнаты как обычное удаленное обновление.
func (s *Session) restore(ctx context.Context) {
	if s.store == nil {
		return
	}

	state, err := s.store.LoadSnapshot(ctx, s.room)
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		return
	}
	if err != nil {
		s.logger.Warn("Failed to load snapshot", "error", err)
		return
	}

	changed, err := s.doc.ApplyRemoteDelta(state)
	if err != nil {
		s.logger.Warn("Discarding corrupt snapshot", "error", err)
		return
	}

	s.logger.Info("Snapshot restored", "objects", len(changed), "bytes", len(state))
}

func (s *Session) onReceive(payload []byte) {
	changed, err := s.doc.ApplyRemoteDelta(payload)
	if errors.Is(err, document.ErrClosed) {
		return
	}
	if err != nil {
		s.logger.Warn("Skipping malformed update", "bytes", len(payload), "error", err)
		return
	}
	if len(changed) == 0 {
		return
	}

	s.adapter.Reconcile()
}

// onConnect отправляет полное состояние после каждого входа в комнату:
// изменения, сделанные офлайн или потерянные при обрыве, доходят до остальных.
// Tombstones тоже считаются: удаление последнего объекта офлайн должно дойти.
func (s *Session) onConnect() {
	if s.doc.TotalLen() == 0 {
		return
	}

	state, err := s.doc.EncodeState()
	if err != nil {
		s.logger.Error("Failed to encode state for catch-up", "error", err)
		return
	}
	s.channel.Broadcast(state)
}

func (s *Session) scheduleSnapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.snapshot = s.timers.AfterFunc(s.interval, func() {
		if err := s.SaveSnapshot(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
			s.logger.Warn("Periodic snapshot failed", "error", err)
		}
		s.scheduleSnapshot()
	})
}

// SaveSnapshot сохраняет текущее состояние документа в локальное хранилище.
func (s *Session) SaveSnapshot(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if s.isClosed() {
		return ErrClosed
	}

	return s.saveLocked(ctx)
}

func (s *Session) saveLocked(ctx context.Context) error {
	state, err := s.doc.EncodeState()
	if err != nil {
		return err
	}
	if err := s.store.SaveSnapshot(ctx, s.room, state); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.logger.Debug("Snapshot saved", "bytes", len(state))
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Room возвращает идентификатор комнаты.
func (s *Session) Room() string { return s.room }

// NodeID возвращает идентификатор узла этого клиента.
func (s *Session) NodeID() string { return s.doc.NodeID() }

// Adapter возвращает адаптер поверхности.
func (s *Session) Adapter() *adapter.Adapter { return s.adapter }

// Document возвращает реплицируемый документ.
func (s *Session) Document() *document.Doc { return s.doc }

// Status возвращает состояние подключения.
func (s *Session) Status() transport.Status { return s.channel.Status() }

// Close передает в канал незавершенные изменения, сохраняет снимок и
// останавливает адаптер, документ и канал (в этом порядке).
func (s *Session) Close() error {
	var err error

	s.closeOnce.Do(func() {
		s.adapter.FlushPending()
		s.doc.Flush()
		s.adapter.Close()

		// новые сохранения не начинаются после финального
		s.saveMu.Lock()
		s.mu.Lock()
		s.closed = true
		if s.snapshot != nil {
			s.snapshot.Stop()
		}
		s.mu.Unlock()
		if s.store != nil {
			if saveErr := s.saveLocked(context.Background()); saveErr != nil {
				err = saveErr
			}
		}
		s.saveMu.Unlock()

		s.offDelta()
		s.doc.Close()
		if closeErr := s.channel.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}

		s.logger.Info("Session closed")
	})

	return err
}
