package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/iudanet/boardsync/internal/client/scene"
	"github.com/iudanet/boardsync/internal/client/scene/memory"
	"github.com/iudanet/boardsync/internal/client/transport"
	"github.com/iudanet/boardsync/internal/validation"
)

// feed очередь событий для печати. Обработчики поверхности вызываются
// из цикла адаптера и не должны блокироваться.
type feed struct {
	ready chan struct{}
	items []any
	mu    sync.Mutex
}

func newFeed() *feed {
	return &feed{ready: make(chan struct{}, 1)}
}

func (f *feed) push(item any) {
	f.mu.Lock()
	f.items = append(f.items, item)
	f.mu.Unlock()

	select {
	case f.ready <- struct{}{}:
	default:
	}
}

func (f *feed) drain() []any {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := f.items
	f.items = nil
	return items
}

// RunWatch подключается к комнате и печатает изменения до отмены ctx.
func (c *Cli) RunWatch(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("missing room. Usage: boardsync-client watch <room>")
	}
	room := args[0]
	if err := validation.ValidateRoomID(room); err != nil {
		return err
	}

	events := newFeed()
	surface := memory.New(memory.Options{})
	unsubscribe := surface.Subscribe(func(e scene.Event) { events.push(e) })
	defer unsubscribe()

	b, err := c.join(ctx, room, surface, func(s transport.Status) { events.push(s) })
	if err != nil {
		return err
	}
	defer c.leave(b)

	c.io.Printf("Watching room %s as %s. Press Ctrl+C to stop.\n", room, b.session.NodeID())

	for {
		select {
		case <-ctx.Done():
			c.io.Println("Stopped.")
			return nil
		case <-events.ready:
		}

		for _, item := range events.drain() {
			switch v := item.(type) {
			case transport.Status:
				c.io.Printf("[status] %s\n", v)
			case scene.Event:
				c.printEvent(b, v)
			}
		}
	}
}

func (c *Cli) printEvent(b *board, e scene.Event) {
	// id назначается в цикле адаптера, дожидаемся его
	b.session.Adapter().Sync()
	id, ok := b.session.Adapter().IdentifierOf(e.Handle)
	if !ok {
		id = "-"
	}

	if e.Type == scene.EventRemoved {
		c.io.Printf("[%s] %s\n", e.Type, id)
		return
	}

	fields, ok := b.surface.Shape(e.Handle)
	if !ok {
		return
	}
	c.io.Printf("[%s] %s %s at (%g, %g)\n", e.Type, id, fields.Kind, fields.Geometry.X, fields.Geometry.Y)
}
