package api

import "time"

// RoomInfo представляет ответ с информацией о комнате
type RoomInfo struct {
	UpdatedAt time.Time `json:"updated_at"` // время последнего обновления
	Room      string    `json:"room"`       // идентификатор комнаты
	Objects   int       `json:"objects"`    // количество живых объектов
	Entries   int       `json:"entries"`    // объекты и tombstones
	Clock     int64     `json:"clock"`      // максимальный Lamport timestamp, только для загруженных комнат
	Members   int       `json:"members"`    // подключенные участники на этом сервере
	StateSize int       `json:"state_size"` // размер закодированного состояния в байтах
}

// RoomList список комнат relay-сервера
type RoomList struct {
	Rooms []string `json:"rooms"`
}

// HealthResponse представляет ответ health-check
type HealthResponse struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
