package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock детерминированные часы для тестов. Время стоит на месте,
// пока не вызван Advance. Колбэки AfterFunc вызываются синхронно внутри
// Advance в порядке дедлайнов.
//
// Нельзя вызывать Advance из колбэка AfterFunc.
type FakeClock struct {
	current time.Time
	waiters []*fakeTimer
	mu      sync.Mutex
}

type fakeTimer struct {
	deadline time.Time
	callback func()
	clock    *FakeClock
	stopped  bool
	fired    bool
}

// Fake создает FakeClock с заданным начальным временем.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// Now возвращает текущее фиктивное время.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

// AfterFunc регистрирует колбэк. При d <= 0 колбэк вызывается сразу.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()

	timer := &fakeTimer{
		deadline: c.current.Add(d),
		callback: f,
		clock:    c,
	}

	if d <= 0 {
		timer.fired = true
		c.mu.Unlock()
		f()
		return timer
	}

	c.waiters = append(c.waiters, timer)
	c.mu.Unlock()

	return timer
}

// Stop отменяет таймер.
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance сдвигает время на d и вызывает все таймеры, чей дедлайн наступил.
// Таймеры, созданные колбэками с дедлайном внутри окна, тоже срабатывают.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.current = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.deadline.After(c.current) {
			c.current = next.deadline
		}
		c.mu.Unlock()

		next.callback()
	}
}

// nextDueLocked возвращает ближайший активный таймер с дедлайном <= target
// и убирает из очереди отработавшие.
func (c *FakeClock) nextDueLocked(target time.Time) *fakeTimer {
	active := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.stopped && !w.fired {
			active = append(active, w)
		}
	}
	c.waiters = active

	sort.SliceStable(c.waiters, func(i, j int) bool {
		return c.waiters[i].deadline.Before(c.waiters[j].deadline)
	})

	if len(c.waiters) == 0 || c.waiters[0].deadline.After(target) {
		return nil
	}

	return c.waiters[0]
}

// Pending возвращает количество активных таймеров.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, w := range c.waiters {
		if !w.stopped && !w.fired {
			count++
		}
	}
	return count
}
