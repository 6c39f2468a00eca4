package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iudanet/boardsync/internal/server/hub"
	"github.com/iudanet/boardsync/internal/validation"
	"github.com/iudanet/boardsync/pkg/api"
)

// RoomInfoProvider возвращает сведения о комнате
type RoomInfoProvider interface {
	RoomInfo(ctx context.Context, room string) (*api.RoomInfo, error)
}

// RoomLister возвращает идентификаторы комнат
type RoomLister interface {
	ListRooms(ctx context.Context) ([]string, error)
}

// RoomProvider сведения о комнатах
type RoomProvider interface {
	RoomInfoProvider
	RoomLister
}

// RoomHandler обрабатывает запросы о комнатах
type RoomHandler struct {
	logger *slog.Logger
	rooms  RoomProvider
}

// NewRoomHandler создает handler для информации о комнатах
func NewRoomHandler(logger *slog.Logger, rooms RoomProvider) *RoomHandler {
	return &RoomHandler{
		logger: logger,
		rooms:  rooms,
	}
}

// Info обрабатывает GET /api/v1/rooms/{room}
func (h *RoomHandler) Info(w http.ResponseWriter, r *http.Request) {
	room := mux.Vars(r)["room"]
	if err := validation.ValidateRoomID(room); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	info, err := h.rooms.RoomInfo(r.Context(), room)
	if errors.Is(err, hub.ErrRoomNotFound) {
		sendError(h.logger, w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to get room info", "room", room, "error", err)
		sendError(h.logger, w, "failed to get room info", http.StatusInternalServerError)
		return
	}

	sendJSON(h.logger, w, info, http.StatusOK)
}

// List обрабатывает GET /api/v1/rooms
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.ListRooms(r.Context())
	if err != nil {
		h.logger.Error("Failed to list rooms", "error", err)
		sendError(h.logger, w, "failed to list rooms", http.StatusInternalServerError)
		return
	}
	if rooms == nil {
		rooms = []string{}
	}

	sendJSON(h.logger, w, api.RoomList{Rooms: rooms}, http.StatusOK)
}
