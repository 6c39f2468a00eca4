// Package clock абстрагирует таймеры, чтобы debounce, grace-окна и
// coalescing кадров можно было детерминированно проверять в тестах.
// В production используется Real(), в тестах - Fake().
package clock

import "time"

// Clock источник времени и таймеров.
type Clock interface {
	// Now возвращает текущее время.
	Now() time.Time

	// AfterFunc вызывает f через d. Возвращенный Timer позволяет отменить вызов.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer отложенный вызов, созданный AfterFunc.
type Timer interface {
	// Stop отменяет вызов. Возвращает false, если вызов уже произошел
	// или таймер уже остановлен.
	Stop() bool
}

// Real возвращает Clock на основе пакета time.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
