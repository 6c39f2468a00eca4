package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/boardsync/internal/validation"
)

// RunSnapshots выводит локальные снимки комнат
func (c *Cli) RunSnapshots(ctx context.Context) error {
	infos, err := c.store.ListSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}
	return c.render(snapshotsTemplate, infos)
}

// RunForget удаляет локальный снимок комнаты
func (c *Cli) RunForget(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("missing room. Usage: boardsync-client forget <room>")
	}
	room := args[0]
	if err := validation.ValidateRoomID(room); err != nil {
		return err
	}

	confirm, err := c.io.ReadInput(fmt.Sprintf("Delete local snapshot of room %s? (yes/no): ", room))
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if confirm != "yes" && confirm != "y" {
		c.io.Println("Cancelled.")
		return nil
	}

	if err := c.store.DeleteSnapshot(ctx, room); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	c.io.Printf("Snapshot of room %s deleted\n", room)
	return nil
}
