package transport

import "errors"

var (
	// ErrRoomUnreachable relay-сервер недоступен после всех попыток подключения
	ErrRoomUnreachable = errors.New("room unreachable")
	// ErrClosed канал закрыт
	ErrClosed = errors.New("channel is closed")
	// ErrAlreadyJoined канал уже подключен к комнате
	ErrAlreadyJoined = errors.New("channel already joined a room")
)
