package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/boardsync/internal/client/api"
	"github.com/iudanet/boardsync/internal/validation"
)

// RunRooms выводит комнаты relay-сервера
func (c *Cli) RunRooms(ctx context.Context, _ []string) error {
	list, err := c.apiClient.Rooms(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rooms: %w", err)
	}
	return c.render(roomsTemplate, list)
}

// RunInfo без аргументов проверяет relay-сервер, с комнатой - выводит ее сведения
func (c *Cli) RunInfo(ctx context.Context, args []string) error {
	if len(args) == 0 {
		health, err := c.apiClient.Health(ctx)
		if err != nil {
			return fmt.Errorf("failed to check relay: %w", err)
		}
		return c.render(healthTemplate, health)
	}

	room := args[0]
	if err := validation.ValidateRoomID(room); err != nil {
		return err
	}

	info, err := c.apiClient.RoomInfo(ctx, room)
	if errors.Is(err, api.ErrNotFound) {
		return fmt.Errorf("room %s not found on relay", room)
	}
	if err != nil {
		return fmt.Errorf("failed to get room info: %w", err)
	}

	return c.render(roomInfoTemplate, info)
}
