// Package memory реализует scene.Surface в памяти. Используется headless
// клиентом и тестами синхронизации вместо настоящего движка рендеринга.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/iudanet/boardsync/internal/client/scene"
	"github.com/iudanet/boardsync/internal/models"
)

// DefaultKinds типы объектов, которые поверхность умеет создавать
var DefaultKinds = []string{
	models.KindPath,
	models.KindRect,
	models.KindCircle,
	models.KindText,
	models.KindImage,
}

// Options параметры поверхности
type Options struct {
	Kinds            []string      // поддерживаемые типы; пусто - DefaultKinds
	MaterializeDelay time.Duration // имитация асинхронного создания объекта
}

type object struct {
	fields models.Fields
	locked bool
}

// Surface поверхность рисования в памяти. Безопасна для конкурентного использования.
type Surface struct {
	objects     map[scene.Handle]*object
	detached    map[scene.Handle]*object
	subscribers map[int]func(scene.Event)
	kinds       map[string]struct{}
	delay       time.Duration
	nextHandle  scene.Handle
	nextSub     int
	mu          sync.Mutex
}

var _ scene.Surface = (*Surface)(nil)

// New создает пустую поверхность.
func New(opts Options) *Surface {
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}

	s := &Surface{
		objects:     make(map[scene.Handle]*object),
		detached:    make(map[scene.Handle]*object),
		subscribers: make(map[int]func(scene.Event)),
		kinds:       make(map[string]struct{}, len(kinds)),
		delay:       opts.MaterializeDelay,
	}
	for _, kind := range kinds {
		s.kinds[kind] = struct{}{}
	}

	return s
}

// Subscribe регистрирует обработчик событий.
func (s *Surface) Subscribe(handler func(scene.Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = handler

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// emit вызывает подписчиков вне блокировки
func (s *Surface) emit(event scene.Event) {
	s.mu.Lock()
	handlers := make([]func(scene.Event), 0, len(s.subscribers))
	for _, handler := range s.subscribers {
		handlers = append(handlers, handler)
	}
	s.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// Draw добавляет объект от имени пользователя.
func (s *Surface) Draw(fields models.Fields) scene.Handle {
	s.mu.Lock()
	s.nextHandle++
	h := s.nextHandle
	s.objects[h] = &object{fields: fields.Clone()}
	s.mu.Unlock()

	s.emit(scene.Event{Type: scene.EventAdded, Handle: h})
	return h
}

// Move перемещает объект от имени пользователя. continuous отмечает
// промежуточный шаг перетаскивания. У заблокированного объекта нет ручек
// поворота и масштаба: допускается только перенос.
func (s *Surface) Move(h scene.Handle, geometry models.Geometry, continuous bool) error {
	s.mu.Lock()
	obj, ok := s.objects[h]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("move %d: %w", h, scene.ErrUnknownHandle)
	}
	if obj.locked && !translation(obj.fields.Geometry, geometry) {
		s.mu.Unlock()
		return fmt.Errorf("move %d: %w", h, scene.ErrLocked)
	}
	obj.fields.Geometry = geometry
	s.mu.Unlock()

	s.emit(scene.Event{Type: scene.EventModified, Handle: h, Continuous: continuous})
	return nil
}

func translation(from, to models.Geometry) bool {
	return from.Rotation == to.Rotation && from.ScaleX == to.ScaleX && from.ScaleY == to.ScaleY
}

// Delete удаляет объект от имени пользователя.
func (s *Surface) Delete(h scene.Handle) error {
	return s.Remove(h)
}

// Shape возвращает состояние объекта на поверхности.
func (s *Surface) Shape(h scene.Handle) (models.Fields, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[h]
	if !ok {
		return models.Fields{}, false
	}
	return obj.fields.Clone(), true
}

// Handles возвращает дескрипторы объектов по возрастанию.
func (s *Surface) Handles() []scene.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := make([]scene.Handle, 0, len(s.objects))
	for h := range s.objects {
		handles = append(handles, h)
	}
	slices.Sort(handles)

	return handles
}

// Materialize создает отсоединенный объект. Неизвестный тип - ошибка.
func (s *Surface) Materialize(ctx context.Context, fields models.Fields) (scene.Handle, error) {
	if _, ok := s.kinds[fields.Kind]; !ok {
		return 0, fmt.Errorf("materialize %q: %w", fields.Kind, scene.ErrUnsupportedKind)
	}

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextHandle++
	h := s.nextHandle
	s.detached[h] = &object{fields: fields.Clone()}

	return h, nil
}

// Insert добавляет отсоединенный объект на поверхность.
func (s *Surface) Insert(h scene.Handle) error {
	s.mu.Lock()
	obj, ok := s.detached[h]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("insert %d: %w", h, scene.ErrUnknownHandle)
	}
	delete(s.detached, h)
	s.objects[h] = obj
	s.mu.Unlock()

	s.emit(scene.Event{Type: scene.EventAdded, Handle: h})
	return nil
}

// Transform меняет геометрию объекта программно (блокировка не учитывается).
func (s *Surface) Transform(h scene.Handle, geometry models.Geometry) error {
	s.mu.Lock()
	obj, ok := s.objects[h]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("transform %d: %w", h, scene.ErrUnknownHandle)
	}
	obj.fields.Geometry = geometry
	s.mu.Unlock()

	s.emit(scene.Event{Type: scene.EventModified, Handle: h})
	return nil
}

// Remove удаляет объект с поверхности.
func (s *Surface) Remove(h scene.Handle) error {
	s.mu.Lock()
	if _, ok := s.objects[h]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("remove %d: %w", h, scene.ErrUnknownHandle)
	}
	delete(s.objects, h)
	s.mu.Unlock()

	s.emit(scene.Event{Type: scene.EventRemoved, Handle: h})
	return nil
}

// Forget удаляет объект без события. Имитирует рассинхронизацию
// поверхности и адаптера (например, сбой движка рендеринга).
func (s *Surface) Forget(h scene.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, h)
}

// SetLocked блокирует объект от трансформаций пользователем.
func (s *Surface) SetLocked(h scene.Handle, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[h]
	if !ok {
		obj, ok = s.detached[h]
	}
	if !ok {
		return fmt.Errorf("lock %d: %w", h, scene.ErrUnknownHandle)
	}
	obj.locked = locked
	return nil
}

// Locked сообщает, заблокирован ли объект.
func (s *Surface) Locked(h scene.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[h]
	return ok && obj.locked
}

// Len возвращает количество объектов на поверхности.
func (s *Surface) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.objects)
}
