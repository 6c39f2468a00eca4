package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/boardsync/pkg/api"
)

// RoomCounter сообщает количество загруженных комнат
type RoomCounter interface {
	Rooms() int
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger *slog.Logger
	rooms  RoomCounter
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(logger *slog.Logger, rooms RoomCounter) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		rooms:  rooms,
	}
}

// Health обрабатывает GET /api/v1/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{
		Status: "ok",
		Rooms:  h.rooms.Rooms(),
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}
