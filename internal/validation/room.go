package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// RoomIDPattern определяет допустимый формат идентификатора комнаты
// Латинские буквы (a-z, A-Z), цифры (0-9), дефис (-) и нижнее подчеркивание (_)
var RoomIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxRoomIDLen максимальная длина идентификатора комнаты
const MaxRoomIDLen = 64

// ValidateRoomID проверяет, что идентификатор комнаты соответствует требованиям.
// Идентификатор попадает в URL и ключи хранилищ, поэтому набор символов ограничен.
func ValidateRoomID(room string) error {
	if room == "" {
		return fmt.Errorf("room id cannot be empty")
	}

	if len(room) > MaxRoomIDLen {
		return fmt.Errorf("room id must not exceed %d characters", MaxRoomIDLen)
	}

	if !RoomIDPattern.MatchString(room) {
		return fmt.Errorf("room id can only contain letters (a-z, A-Z), numbers (0-9), hyphens (-) and underscores (_)")
	}

	return nil
}

// ValidateRelayURL проверяет адрес relay-сервера: только ws:// или wss://
func ValidateRelayURL(url string) error {
	switch {
	case url == "":
		return fmt.Errorf("relay url cannot be empty")
	case strings.HasPrefix(url, "ws://") && len(url) > len("ws://"):
		return nil
	case strings.HasPrefix(url, "wss://") && len(url) > len("wss://"):
		return nil
	default:
		return fmt.Errorf("relay url must start with ws:// or wss://")
	}
}
