// Package hub реализует relay комнат доски: принимает websocket-подключения,
// хранит объединенное состояние каждой комнаты и рассылает обновления
// остальным участникам.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/boardsync/internal/codec"
	"github.com/iudanet/boardsync/internal/crdt"
	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/internal/server/storage"
	"github.com/iudanet/boardsync/pkg/api"
)

const (
	DefaultPongWait       = 90 * time.Second
	DefaultWriteWait      = 10 * time.Second
	DefaultSendBuffer     = 256
	DefaultMaxMessageSize = 32 << 20

	// relayOrigin подписывает закодированное состояние комнаты
	relayOrigin = "relay"
)

// ErrRoomNotFound комната не загружена и не сохранена
var ErrRoomNotFound = errors.New("room not found")

//go:generate moq -out publisher_mock.go . Publisher

// Publisher пересылает обновления другим экземплярам relay-сервера
type Publisher interface {
	Publish(ctx context.Context, room string, update []byte) error
}

// Options параметры hub
type Options struct {
	Store          storage.RoomStorage // nil - состояние только в памяти
	Publisher      Publisher           // nil - один экземпляр
	Logger         *slog.Logger
	CheckOrigin    func(r *http.Request) bool
	PongWait       time.Duration // клиент молчит дольше - отключается
	WriteWait      time.Duration
	SendBuffer     int
	MaxMessageSize int64
}

// Hub набор комнат и их участников
type Hub struct {
	store     storage.RoomStorage
	publisher Publisher
	logger    *slog.Logger
	rooms     map[string]*room
	upgrader  websocket.Upgrader
	opts      Options
	mu        sync.Mutex
}

// room состояние комнаты. members защищены Hub.mu, state - собственной блокировкой.
type room struct {
	updatedAt time.Time
	state     *crdt.LWWMap
	members   map[*client]struct{}
	id        string
}

// New создает hub.
func New(opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PongWait <= 0 {
		opts.PongWait = DefaultPongWait
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = DefaultWriteWait
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = DefaultMaxMessageSize
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(*http.Request) bool { return true }
	}

	return &Hub{
		store:     opts.Store,
		publisher: opts.Publisher,
		logger:    opts.Logger.With("component", "hub"),
		rooms:     make(map[string]*room),
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
	}
}

// ServeHTTP обрабатывает GET /ws: upgrade до websocket и обслуживание клиента.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту ошибкой
		h.logger.Warn("Websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	c := newClient(h, conn, r.RemoteAddr)
	c.serve(r.Context())
}

// join регистрирует клиента в комнате, загружая ее из хранилища при
// необходимости, и ставит в очередь init с полным состоянием комнаты.
// Регистрация и init под одной блокировкой: обновления других участников
// попадают в очередь клиента только после init.
func (h *Hub) join(ctx context.Context, c *client, roomID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm, ok := h.rooms[roomID]
	if !ok {
		var err error
		rm, err = h.loadLocked(ctx, roomID)
		if err != nil {
			return err
		}
		h.rooms[roomID] = rm
	}

	state, err := encodeState(rm)
	if err != nil {
		return err
	}

	rm.members[c] = struct{}{}
	c.room = rm
	c.enqueue(api.Message{Event: api.EventInit, Room: roomID, Payload: state})

	h.logger.Info("Client joined room",
		"room", roomID,
		"remote_addr", c.remote,
		"members", len(rm.members),
		"objects", rm.state.Len(),
	)

	return nil
}

func (h *Hub) loadLocked(ctx context.Context, roomID string) (*room, error) {
	rm := &room{
		id:        roomID,
		state:     crdt.NewLWWMap(),
		members:   make(map[*client]struct{}),
		updatedAt: time.Now(),
	}
	if h.store == nil {
		return rm, nil
	}

	entries, err := h.store.LoadRoom(ctx, roomID)
	switch {
	case errors.Is(err, storage.ErrRoomNotFound):
		return rm, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load room %s: %w", roomID, err)
	}

	rm.state.ApplyAll(entries)
	h.logger.Debug("Room loaded from storage", "room", roomID, "entries", len(entries))

	return rm, nil
}

// leave удаляет клиента из комнаты. Пустая комната выгружается из памяти,
// если ее состояние сохранено в хранилище.
func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm := c.room
	if rm == nil {
		return
	}
	delete(rm.members, c)
	c.room = nil

	h.logger.Info("Client left room", "room", rm.id, "remote_addr", c.remote, "members", len(rm.members))

	if len(rm.members) == 0 && h.store != nil {
		delete(h.rooms, rm.id)
	}
}

// applyUpdate сливает обновление клиента в состояние комнаты, рассылает
// его остальным участникам, сохраняет и публикует для других экземпляров.
func (h *Hub) applyUpdate(ctx context.Context, from *client, rm *room, update []byte) error {
	changed, err := h.merge(rm, update)
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		return nil // дубликат
	}

	h.fanout(rm, from, update)
	h.persist(ctx, rm, changed)

	if h.publisher != nil {
		if err := h.publisher.Publish(ctx, rm.id, update); err != nil {
			h.logger.Warn("Failed to publish update", "room", rm.id, "error", err)
		}
	}

	return nil
}

// ApplyExternal применяет обновление, пришедшее от другого экземпляра relay.
// Комнаты, не загруженные на этом экземпляре, пропускаются: их состояние
// сохранил экземпляр-отправитель.
func (h *Hub) ApplyExternal(roomID string, update []byte) {
	h.mu.Lock()
	rm, ok := h.rooms[roomID]
	h.mu.Unlock()
	if !ok {
		return
	}

	changed, err := h.merge(rm, update)
	if err != nil {
		h.logger.Warn("Dropping external update", "room", roomID, "error", err)
		return
	}
	if len(changed) > 0 {
		h.fanout(rm, nil, update)
	}
}

func (h *Hub) merge(rm *room, update []byte) ([]string, error) {
	delta, err := codec.Decode(update)
	if err != nil {
		return nil, err
	}

	changed := rm.state.ApplyAll(delta.Entries)
	if len(changed) > 0 {
		h.mu.Lock()
		rm.updatedAt = time.Now()
		h.mu.Unlock()
	}

	return changed, nil
}

// fanout отправляет update всем участникам комнаты, кроме from
func (h *Hub) fanout(rm *room, from *client, update []byte) {
	msg := api.Message{Event: api.EventUpdate, Payload: update}

	h.mu.Lock()
	defer h.mu.Unlock()

	for member := range rm.members {
		if member == from {
			continue
		}
		member.enqueue(msg)
	}
}

func (h *Hub) persist(ctx context.Context, rm *room, changed []string) {
	if h.store == nil {
		return
	}

	entries := make([]*models.ObjectEntry, 0, len(changed))
	for _, id := range changed {
		if entry, ok := rm.state.Lookup(id); ok {
			entries = append(entries, entry)
		}
	}

	if _, err := h.store.SaveEntries(ctx, rm.id, entries); err != nil {
		h.logger.Error("Failed to persist room update", "room", rm.id, "entries", len(entries), "error", err)
	}
}

// RoomInfo возвращает сведения о комнате из памяти или из хранилища.
func (h *Hub) RoomInfo(ctx context.Context, roomID string) (*api.RoomInfo, error) {
	h.mu.Lock()
	rm, ok := h.rooms[roomID]
	var (
		members   int
		updatedAt time.Time
	)
	if ok {
		members = len(rm.members)
		updatedAt = rm.updatedAt
	}
	h.mu.Unlock()

	if ok {
		state, err := encodeState(rm)
		if err != nil {
			return nil, err
		}
		return &api.RoomInfo{
			Room:      roomID,
			Objects:   rm.state.Len(),
			Entries:   rm.state.TotalLen(),
			Clock:     rm.state.MaxTimestamp(),
			Members:   members,
			StateSize: len(state),
			UpdatedAt: updatedAt,
		}, nil
	}

	if h.store == nil {
		return nil, ErrRoomNotFound
	}

	stats, err := h.store.RoomStats(ctx, roomID)
	if errors.Is(err, storage.ErrRoomNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room stats: %w", err)
	}

	return &api.RoomInfo{
		Room:      roomID,
		Objects:   stats.Objects,
		Entries:   stats.Entries,
		UpdatedAt: stats.UpdatedAt,
	}, nil
}

// ListRooms возвращает загруженные и сохраненные комнаты по алфавиту.
func (h *Hub) ListRooms(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	rooms := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		rooms = append(rooms, id)
	}
	h.mu.Unlock()

	if h.store != nil {
		stored, err := h.store.ListRooms(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list rooms: %w", err)
		}
		rooms = append(rooms, stored...)
	}

	slices.Sort(rooms)
	return slices.Compact(rooms), nil
}

// Rooms возвращает количество загруженных комнат.
func (h *Hub) Rooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Close отключает всех клиентов.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, rm := range h.rooms {
		for member := range rm.members {
			member.close()
		}
	}
}

func encodeState(rm *room) ([]byte, error) {
	state, err := codec.Encode(&models.Delta{Origin: relayOrigin, Entries: rm.state.All()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode room %s: %w", rm.id, err)
	}
	return state, nil
}
