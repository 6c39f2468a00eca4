// Package scene описывает контракт локальной поверхности рисования.
// Сама поверхность (движок рендеринга) - внешний компонент: синхронизация
// видит ее только через CRUD объектов и события изменений.
package scene

import (
	"context"
	"errors"

	"github.com/iudanet/boardsync/internal/models"
)

// Handle локальный дескриптор объекта на поверхности.
// Не связан с идентификатором объекта в документе.
type Handle uint64

// EventType тип события поверхности
type EventType int

const (
	// EventAdded объект добавлен на поверхность
	EventAdded EventType = iota + 1
	// EventModified объект изменен (перемещение, поворот, масштаб)
	EventModified
	// EventRemoved объект удален с поверхности
	EventRemoved
)

// String возвращает имя события для логов
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "object:added"
	case EventModified:
		return "object:modified"
	case EventRemoved:
		return "object:removed"
	default:
		return "unknown"
	}
}

// Event событие изменения поверхности.
type Event struct {
	Type   EventType
	Handle Handle
	// Continuous - промежуточный шаг непрерывного действия (drag, rotate).
	// Такие события объединяются debounce, дискретные отправляются сразу.
	Continuous bool
}

// Ошибки поверхности
var (
	ErrUnknownHandle   = errors.New("unknown handle")
	ErrUnsupportedKind = errors.New("unsupported object kind")
	ErrLocked          = errors.New("object is locked")
)

// Surface локальная поверхность рисования.
//
// Все методы, изменяющие поверхность, порождают соответствующие события
// у подписчиков, независимо от того, кто инициировал изменение.
type Surface interface {
	// Subscribe регистрирует обработчик событий. Возвращает функцию отписки.
	Subscribe(handler func(Event)) (unsubscribe func())

	// Shape возвращает текущее состояние объекта.
	Shape(h Handle) (models.Fields, bool)

	// Handles возвращает все объекты на поверхности.
	Handles() []Handle

	// Materialize создает объект из сериализованного состояния, не добавляя
	// его на поверхность. Может занимать заметное время.
	Materialize(ctx context.Context, fields models.Fields) (Handle, error)

	// Insert добавляет созданный Materialize объект на поверхность.
	Insert(h Handle) error

	// Transform меняет геометрию объекта.
	Transform(h Handle, geometry models.Geometry) error

	// Remove удаляет объект с поверхности.
	Remove(h Handle) error

	// SetLocked запрещает или разрешает пользователю трансформировать объект.
	SetLocked(h Handle, locked bool) error
}
