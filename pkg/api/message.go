// Package api описывает протокол обмена между клиентом доски и relay-сервером.
//
// Сообщения передаются текстовыми websocket-кадрами в JSON. Бинарные
// обновления документа ([]byte) кодируются в base64 стандартным
// encoding/json.
package api

// События протокола
const (
	EventJoin   = "join"   // клиент -> сервер: вход в комнату
	EventInit   = "init"   // сервер -> клиент: полное состояние комнаты
	EventUpdate = "update" // сервер -> клиент: обновление от другого участника
	EventSync   = "sync"   // клиент -> сервер: локальное обновление
	EventPing   = "ping"   // клиент -> сервер: keepalive
	EventPong   = "pong"   // сервер -> клиент: ответ на ping
	EventError  = "error"  // сервер -> клиент: ошибка обработки сообщения
)

// Message сообщение протокола. Набор заполненных полей зависит от Event.
type Message struct {
	Event   string `json:"event"`
	Room    string `json:"room,omitempty"`
	Message string `json:"message,omitempty"` // текст ошибки для EventError
	Payload []byte `json:"payload,omitempty"` // init, update
	Update  []byte `json:"update,omitempty"`  // sync
}

// Join создает сообщение входа в комнату.
func Join(room string) Message {
	return Message{Event: EventJoin, Room: room}
}

// Sync создает сообщение с локальным обновлением.
func Sync(room string, update []byte) Message {
	return Message{Event: EventSync, Room: room, Update: update}
}

// Ping создает keepalive сообщение.
func Ping(room string) Message {
	return Message{Event: EventPing, Room: room}
}

// Data возвращает бинарное обновление сообщения, если оно есть.
func (m Message) Data() []byte {
	switch m.Event {
	case EventInit, EventUpdate:
		return m.Payload
	case EventSync:
		return m.Update
	default:
		return nil
	}
}
