package cli

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/iudanet/boardsync/internal/client/scene/memory"
	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/internal/validation"
)

// RunDraw добавляет объект на доску комнаты
func (c *Cli) RunDraw(ctx context.Context, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("missing arguments. Usage: boardsync-client draw <room> <kind> <x> <y> [text]")
	}

	room, kind := args[0], args[1]
	if err := validation.ValidateRoomID(room); err != nil {
		return err
	}
	if !slices.Contains(memory.DefaultKinds, kind) {
		return fmt.Errorf("unknown kind: %s. Use: %s", kind, strings.Join(memory.DefaultKinds, ", "))
	}
	geometry, err := parsePosition(args[2], args[3])
	if err != nil {
		return err
	}

	fields := models.Fields{Kind: kind, Geometry: geometry}
	if len(args) > 4 {
		fields.Payload = []byte(args[4])
	}

	b, err := c.join(ctx, room, memory.New(memory.Options{}), nil)
	if err != nil {
		return err
	}
	defer c.leave(b)

	if err := c.waitConnected(ctx, b); err != nil {
		return err
	}

	h := b.surface.Draw(fields)
	id := b.session.Adapter().EnsureIdentifier(h)
	if !b.session.Document().Has(id) {
		return fmt.Errorf("failed to draw %s: %w", kind, errNotAdded)
	}

	if err := c.pause(ctx); err != nil {
		return err
	}

	c.io.Printf("Object %s added to room %s\n", id, room)
	return nil
}

// RunMove перемещает объект
func (c *Cli) RunMove(ctx context.Context, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("missing arguments. Usage: boardsync-client move <room> <id> <x> <y>")
	}

	room, id := args[0], args[1]
	if err := validation.ValidateRoomID(room); err != nil {
		return err
	}
	geometry, err := parsePosition(args[2], args[3])
	if err != nil {
		return err
	}

	return c.withObject(ctx, room, id, func(b *board, fields models.Fields) error {
		h, _ := b.session.Adapter().HandleOf(id)
		geometry.Rotation = fields.Geometry.Rotation
		geometry.ScaleX = fields.Geometry.ScaleX
		geometry.ScaleY = fields.Geometry.ScaleY
		if err := b.surface.Move(h, geometry, false); err != nil {
			return fmt.Errorf("failed to move object %s: %w", id, err)
		}
		c.io.Printf("Object %s moved to (%g, %g)\n", id, geometry.X, geometry.Y)
		return nil
	})
}

// RunDelete удаляет объект
func (c *Cli) RunDelete(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("missing arguments. Usage: boardsync-client delete <room> <id>")
	}

	room, id := args[0], args[1]
	if err := validation.ValidateRoomID(room); err != nil {
		return err
	}

	return c.withObject(ctx, room, id, func(b *board, _ models.Fields) error {
		h, _ := b.session.Adapter().HandleOf(id)
		if err := b.surface.Delete(h); err != nil {
			return fmt.Errorf("failed to delete object %s: %w", id, err)
		}
		c.io.Printf("Object %s deleted\n", id)
		return nil
	})
}

// withObject подключается к комнате, дожидается появления объекта id и
// выполняет над ним действие. Изменения успевают уйти до выхода.
func (c *Cli) withObject(ctx context.Context, room, id string, action func(b *board, fields models.Fields) error) error {
	b, err := c.join(ctx, room, memory.New(memory.Options{}), nil)
	if err != nil {
		return err
	}
	defer c.leave(b)

	if err := c.waitConnected(ctx, b); err != nil {
		return err
	}

	var fields models.Fields
	found := c.waitUntil(ctx, func() bool {
		h, ok := b.session.Adapter().HandleOf(id)
		if !ok || b.session.Adapter().RemoteOrigin(id) {
			return false
		}
		fields, ok = b.surface.Shape(h)
		return ok
	})
	if !found {
		return fmt.Errorf("object %s: %w", id, errObjectNotFound)
	}

	if err := action(b, fields); err != nil {
		return err
	}

	b.session.Adapter().Sync()
	return c.pause(ctx)
}

func parsePosition(xs, ys string) (models.Geometry, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return models.Geometry{}, fmt.Errorf("invalid x coordinate %q", xs)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return models.Geometry{}, fmt.Errorf("invalid y coordinate %q", ys)
	}
	return models.At(x, y), nil
}
