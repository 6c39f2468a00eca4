package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/boardsync/internal/validation"
	"github.com/iudanet/boardsync/pkg/api"
)

// client одно websocket-подключение участника
type client struct {
	hub       *Hub
	conn      *websocket.Conn
	room      *room // защищен Hub.mu
	send      chan []byte
	done      chan struct{}
	remote    string
	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, remote string) *client {
	return &client{
		hub:    h,
		conn:   conn,
		remote: remote,
		send:   make(chan []byte, h.opts.SendBuffer),
		done:   make(chan struct{}),
	}
}

// serve обслуживает подключение до его закрытия
func (c *client) serve(ctx context.Context) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.readPump(ctx)

	c.hub.leave(c)
	c.close()
	<-writerDone
}

func (c *client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("Connection closed unexpectedly", "remote_addr", c.remote, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))

		var msg api.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("malformed message")
			continue
		}

		c.handle(ctx, msg)
	}
}

func (c *client) handle(ctx context.Context, msg api.Message) {
	switch msg.Event {
	case api.EventJoin:
		if err := validation.ValidateRoomID(msg.Room); err != nil {
			c.sendError(err.Error())
			return
		}
		if c.currentRoom() != nil {
			c.sendError("already joined a room")
			return
		}
		if err := c.hub.join(ctx, c, msg.Room); err != nil {
			c.hub.logger.Error("Failed to join room", "room", msg.Room, "error", err)
			c.sendError("failed to join room")
		}

	case api.EventSync:
		rm := c.currentRoom()
		if rm == nil {
			c.sendError("join a room first")
			return
		}
		if msg.Room != "" && msg.Room != rm.id {
			c.sendError(fmt.Sprintf("not joined to room %q", msg.Room))
			return
		}
		if err := c.hub.applyUpdate(ctx, c, rm, msg.Data()); err != nil {
			c.hub.logger.Warn("Dropping malformed update", "room", rm.id, "remote_addr", c.remote, "error", err)
			c.sendError("malformed update")
		}

	case api.EventPing:
		c.enqueue(api.Message{Event: api.EventPong})

	default:
		c.sendError(fmt.Sprintf("unknown event %q", msg.Event))
	}
}

func (c *client) currentRoom() *room {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	return c.room
}

func (c *client) sendError(message string) {
	c.enqueue(api.Message{Event: api.EventError, Message: message})
}

// enqueue ставит сообщение в очередь отправки. Клиент, не успевающий
// читать, отключается.
func (c *client) enqueue(msg api.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("Failed to marshal message", "event", msg.Event, "error", err)
		return
	}

	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.hub.logger.Warn("Slow client, disconnecting", "remote_addr", c.remote)
		c.close()
	}
}

func (c *client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		}
	}
}

// close закрывает подключение; readPump завершится с ошибкой чтения
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
