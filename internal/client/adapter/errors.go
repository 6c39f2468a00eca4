package adapter

import "errors"

// Ошибки синхронизации сцены. Все они восстановимы: адаптер логирует их
// и продолжает работу с остальными объектами.
var (
	// ErrMaterialization объект из документа не удалось создать локально
	// (например, неподдерживаемый тип). Объект пропускается.
	ErrMaterialization = errors.New("failed to materialize remote object")

	// ErrCorruptLocalState адаптер и поверхность разошлись так, что сверка
	// не может это исправить (дубликат идентификатора, объект исчез без события).
	// Объект удаляется и создается заново из документа.
	ErrCorruptLocalState = errors.New("corrupt local scene state")
)
