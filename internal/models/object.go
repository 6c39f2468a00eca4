package models

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Типы объектов на доске
const (
	KindPath   = "path"   // KindPath свободная линия (freehand)
	KindRect   = "rect"   // KindRect прямоугольник
	KindCircle = "circle" // KindCircle окружность
	KindText   = "text"   // KindText текстовый блок
	KindImage  = "image"  // KindImage изображение (ссылка в Payload)
)

// Geometry представляет изменяемые поля объекта, влияющие на перерисовку.
// Именно по ним считается fingerprint для подавления no-op обновлений.
type Geometry struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	ScaleX   float64 `json:"scale_x"`
	ScaleY   float64 `json:"scale_y"`
}

// At возвращает геометрию с заданной позицией и единичным масштабом.
func At(x, y float64) Geometry {
	return Geometry{X: x, Y: y, ScaleX: 1, ScaleY: 1}
}

// Fields группа полей объекта, которая реплицируется атомарно.
// Конфликты разрешаются целиком по группе (coarse-grained LWW),
// а не по отдельным полям.
type Fields struct {
	Kind     string   `json:"kind"`              // Kind дискриминатор типа объекта
	Payload  []byte   `json:"payload,omitempty"` // Payload сериализованные данные (штрихи, ссылка на картинку и т.д.)
	Geometry Geometry `json:"geometry"`          // Geometry позиция, поворот и масштаб
}

// Clone создает глубокую копию группы полей
func (f Fields) Clone() Fields {
	var payload []byte
	if f.Payload != nil {
		payload = make([]byte, len(f.Payload))
		copy(payload, f.Payload)
	}

	return Fields{
		Kind:     f.Kind,
		Payload:  payload,
		Geometry: f.Geometry,
	}
}

// Equal сравнивает группы полей целиком.
func (f Fields) Equal(other Fields) bool {
	return f.Kind == other.Kind &&
		f.Geometry == other.Geometry &&
		bytes.Equal(f.Payload, other.Payload)
}

// SceneObject представляет объект на доске вместе с его идентификатором.
type SceneObject struct {
	ID string `json:"id"`
	Fields
}

// ObjectEntry представляет слот реплицируемого документа.
// Используется для синхронизации сцены между участниками комнаты
// с автоматическим разрешением конфликтов по правилу LWW.
type ObjectEntry struct {
	ID        string `json:"id"`         // ID идентификатор объекта, уникальный в пределах комнаты
	NodeID    string `json:"node_id"`    // NodeID идентификатор узла, записавшего эту версию
	Fields    Fields `json:"fields"`     // Fields последнее известное состояние объекта
	Timestamp int64  `json:"timestamp"`  // Timestamp Lamport timestamp для упорядочивания записей
	UpdatedAt int64  `json:"updated_at"` // UpdatedAt unix millis, только для информации
	Deleted   bool   `json:"deleted"`    // Deleted tombstone: объект удален
}

// IsNewerThan сравнивает две записи по правилу LWW (Last-Write-Wins):
// 1. Сначала сравнивается Timestamp (больший выигрывает)
// 2. При равных Timestamp сравнивается NodeID (лексикографически)
func (e *ObjectEntry) IsNewerThan(other *ObjectEntry) bool {
	if e.Timestamp != other.Timestamp {
		return e.Timestamp > other.Timestamp
	}
	// Timestamps равны - сравниваем NodeID для детерминизма
	return e.NodeID > other.NodeID
}

// Clone создает глубокую копию записи
func (e *ObjectEntry) Clone() *ObjectEntry {
	return &ObjectEntry{
		ID:        e.ID,
		NodeID:    e.NodeID,
		Fields:    e.Fields.Clone(),
		Timestamp: e.Timestamp,
		UpdatedAt: e.UpdatedAt,
		Deleted:   e.Deleted,
	}
}

// Delta декодированное представление бинарного обновления документа.
type Delta struct {
	Origin  string         `json:"origin"`  // Origin узел, сформировавший обновление
	Entries []*ObjectEntry `json:"entries"` // Entries измененные слоты
}

// NewObjectID генерирует идентификатор объекта без координации с другими
// участниками: timestamp + случайный суффикс.
func NewObjectID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), suffix)
}
