package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/iudanet/boardsync/internal/client/scene/memory"
	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/internal/validation"
)

type sceneView struct {
	Room    string
	Status  string
	Objects []models.SceneObject
}

// RunShow выводит объекты комнаты
func (c *Cli) RunShow(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("missing room. Usage: boardsync-client show <room>")
	}
	room := args[0]
	if err := validation.ValidateRoomID(room); err != nil {
		return err
	}

	b, err := c.join(ctx, room, memory.New(memory.Options{}), nil)
	if err != nil {
		return err
	}
	defer c.leave(b)

	if err := c.waitConnected(ctx, b); err != nil {
		return err
	}
	b.session.Adapter().Sync()

	objects := b.session.Adapter().Objects()
	slices.SortFunc(objects, func(x, y models.SceneObject) int {
		return strings.Compare(x.ID, y.ID)
	})

	return c.render(sceneTemplate, sceneView{
		Room:    room,
		Status:  b.session.Status().String(),
		Objects: objects,
	})
}
