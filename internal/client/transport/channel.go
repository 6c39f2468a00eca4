// Package transport реализует канал комнаты поверх websocket: доставку
// бинарных обновлений документа всем участникам комнаты через relay-сервер.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/iudanet/boardsync/pkg/api"
)

const (
	DefaultPingInterval   = 25 * time.Second
	DefaultPongWait       = 60 * time.Second
	DefaultWriteWait      = 10 * time.Second
	DefaultMaxAttempts    = 10
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 10 * time.Second
	DefaultSendBuffer     = 256

	maxMessageSize = 32 << 20
)

// Status состояние подключения (для индикатора в UI)
type Status int

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Options параметры канала
type Options struct {
	Dialer         *websocket.Dialer
	Logger         *slog.Logger
	URL            string // ws://host:port/ws
	PingInterval   time.Duration
	PongWait       time.Duration // нет входящих сообщений дольше PongWait - переподключение
	WriteWait      time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxAttempts    int // попыток подряд до статуса Disconnected
	SendBuffer     int
}

// Channel канал комнаты. Сам переподключается и заново входит в комнату
// после обрыва связи.
type Channel struct {
	ctx    context.Context
	conn   *websocket.Conn
	logger *slog.Logger
	cancel context.CancelFunc
	send   chan []byte // очередь текущего подключения; nil - offline
	room   string
	opts   Options

	onReceive []func([]byte)
	onConnect []func()
	onStatus  []func(Status)

	wg     sync.WaitGroup
	mu     sync.Mutex
	status Status
	closed bool
}

// New создает канал. Подключение начинается в Join.
func New(opts Options) *Channel {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.PongWait <= 0 {
		opts.PongWait = DefaultPongWait
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = DefaultWriteWait
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Channel{
		ctx:    ctx,
		cancel: cancel,
		opts:   opts,
		logger: opts.Logger.With("component", "transport"),
		status: StatusDisconnected,
	}
}

// OnReceive регистрирует обработчик входящих обновлений (init и update).
func (c *Channel) OnReceive(cb func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReceive = append(c.onReceive, cb)
}

// OnConnect регистрирует обработчик, вызываемый после каждого входа в комнату.
func (c *Channel) OnConnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, cb)
}

// OnStatus регистрирует обработчик изменения состояния подключения.
func (c *Channel) OnStatus(cb func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = append(c.onStatus, cb)
}

// Status возвращает текущее состояние подключения.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Join подключается к relay-серверу и входит в комнату. Возвращает
// ErrRoomUnreachable, если сервер недоступен после MaxAttempts попыток.
// После успешного Join канал сам поддерживает подключение до Close.
func (c *Channel) Join(ctx context.Context, room string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.room != "" {
		c.mu.Unlock()
		return fmt.Errorf("join %q: %w", room, ErrAlreadyJoined)
	}
	c.room = room
	c.mu.Unlock()

	joinCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	conn, err := c.connect(joinCtx)
	if err != nil {
		c.mu.Lock()
		c.room = ""
		c.mu.Unlock()
		c.setStatus(StatusDisconnected)
		return err
	}

	c.wg.Add(1)
	go c.serve(conn)

	return nil
}

// Broadcast отправляет обновление остальным участникам комнаты.
// Не блокирует; без подключения обновление отбрасывается (его доставит
// догоняющая синхронизация после переподключения).
func (c *Channel) Broadcast(update []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.send == nil {
		c.logger.Debug("Offline, dropping update", "bytes", len(update))
		return
	}

	data, err := json.Marshal(api.Sync(c.room, update))
	if err != nil {
		c.logger.Error("Failed to marshal sync message", "error", err)
		return
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn("Send buffer full, dropping update", "room", c.room, "bytes", len(update))
	}
}

// Close закрывает подключение и останавливает все горутины канала.
// После возврата обработчики не вызываются.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		_ = conn.Close()
	}
	c.wg.Wait()

	c.logger.Debug("Channel closed")
	return nil
}

// serve обслуживает подключение и переподключается после обрыва.
func (c *Channel) serve(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		if conn != nil {
			c.runConnection(conn)
			conn = nil
		}
		if c.ctx.Err() != nil {
			return
		}

		var err error
		conn, err = c.connect(c.ctx)
		if err == nil {
			continue
		}
		if c.ctx.Err() != nil {
			return
		}

		c.setStatus(StatusDisconnected)
		c.logger.Error("Relay unreachable, will retry", "url", c.opts.URL, "error", err)

		timer := time.NewTimer(c.opts.MaxBackoff)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connect подключается с экспоненциальной задержкой между попытками.
func (c *Channel) connect(ctx context.Context) (*websocket.Conn, error) {
	c.setStatus(StatusConnecting)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialBackoff
	b.MaxInterval = c.opts.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		conn, err := c.dial(ctx)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		if attempt == c.opts.MaxAttempts {
			break
		}

		wait := b.NextBackOff()
		c.logger.Warn("Connection attempt failed",
			"attempt", attempt,
			"retry_in", wait,
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrRoomUnreachable, c.opts.URL, c.opts.MaxAttempts, lastErr)
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	room := c.room
	c.mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	if err := conn.WriteJSON(api.Join(room)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send join: %w", err)
	}

	return conn, nil
}

// runConnection обслуживает одно подключение до его обрыва.
func (c *Channel) runConnection(conn *websocket.Conn) {
	send := make(chan []byte, c.opts.SendBuffer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.send = send
	room := c.room
	c.mu.Unlock()

	c.logger.Info("Joined room", "room", room, "url", c.opts.URL)
	c.setStatus(StatusConnected)
	c.notifyConnect()

	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(conn, send, room, done)
	}()

	c.readPump(conn)

	c.mu.Lock()
	c.conn = nil
	c.send = nil
	c.mu.Unlock()

	close(done)
	<-writerDone

	if c.ctx.Err() == nil {
		c.logger.Info("Connection lost, reconnecting", "room", room)
	}
}

func (c *Channel) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Debug("Read failed", "error", err)
			}
			return
		}
		// любое входящее сообщение подтверждает, что соединение живо
		_ = conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))

		var msg api.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Malformed message from relay", "error", err)
			continue
		}

		switch msg.Event {
		case api.EventInit, api.EventUpdate:
			c.notifyReceive(msg.Data())
		case api.EventPong:
		case api.EventError:
			c.logger.Warn("Relay error", "message", msg.Message)
		default:
			c.logger.Debug("Unknown event from relay", "event", msg.Event)
		}
	}
}

func (c *Channel) writePump(conn *websocket.Conn, send <-chan []byte, room string, done <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	ping, err := json.Marshal(api.Ping(room))
	if err != nil {
		c.logger.Error("Failed to marshal ping", "error", err)
		_ = conn.Close()
		return
	}

	write := func(data []byte) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.logger.Debug("Write failed", "error", err)
			// закрытие разблокирует readPump
			_ = conn.Close()
			return false
		}
		return true
	}

	for {
		select {
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteWait))
			_ = conn.Close()
			return
		case data := <-send:
			if !write(data) {
				<-done
				return
			}
		case <-ticker.C:
			if !write(ping) {
				<-done
				return
			}
		}
	}
}

func (c *Channel) setStatus(status Status) {
	c.mu.Lock()
	if c.status == status || c.closed {
		c.mu.Unlock()
		return
	}
	c.status = status
	callbacks := append([]func(Status){}, c.onStatus...)
	c.mu.Unlock()

	c.logger.Debug("Connection status changed", "status", status)
	for _, cb := range callbacks {
		cb(status)
	}
}

func (c *Channel) notifyConnect() {
	c.mu.Lock()
	callbacks := append([]func(){}, c.onConnect...)
	c.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

func (c *Channel) notifyReceive(payload []byte) {
	if len(payload) == 0 {
		return
	}

	c.mu.Lock()
	callbacks := append([]func([]byte){}, c.onReceive...)
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return
	}
	for _, cb := range callbacks {
		cb(payload)
	}
}
