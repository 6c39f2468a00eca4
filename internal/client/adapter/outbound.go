package adapter

import (
	"github.com/iudanet/boardsync/internal/client/scene"
	"github.com/iudanet/boardsync/internal/models"
)

// onSurfaceEvent вызывается поверхностью синхронно, возможно изнутри
// цикла адаптера. Только ставит событие в очередь.
func (a *Adapter) onSurfaceEvent(event scene.Event) {
	a.post(func() { a.handleEvent(event) })
}

func (a *Adapter) handleEvent(event scene.Event) {
	switch event.Type {
	case scene.EventAdded:
		a.onLocalObjectAdded(event.Handle)
	case scene.EventModified:
		a.onLocalObjectModified(event.Handle, event.Continuous)
	case scene.EventRemoved:
		a.onLocalObjectRemoved(event.Handle)
	default:
		a.logger.Warn("Unknown surface event", "type", event.Type, "handle", event.Handle)
	}
}

// adoptExisting отправляет в документ объекты, нарисованные до запуска адаптера.
func (a *Adapter) adoptExisting() {
	for _, h := range a.surface.Handles() {
		if _, known := a.ids[h]; !known {
			a.onLocalObjectAdded(h)
		}
	}
}

func (a *Adapter) onLocalObjectAdded(h scene.Handle) {
	if id, known := a.ids[h]; known {
		if a.states[id].remote {
			return // эхо собственного Insert
		}
		a.onLocalObjectModified(h, false)
		return
	}

	fields, ok := a.surface.Shape(h)
	if !ok {
		return // объект уже удален
	}

	id := a.ensureIdentifier(h)
	if id == "" {
		return
	}
	st := a.states[id]
	st.fingerprint = Fingerprint(fields.Geometry)
	a.emit(id, st, fields)
}

func (a *Adapter) onLocalObjectModified(h scene.Handle, continuous bool) {
	id, known := a.ids[h]
	if !known {
		a.onLocalObjectAdded(h)
		return
	}

	st := a.states[id]
	if st.remote {
		return
	}

	fields, ok := a.surface.Shape(h)
	if !ok {
		return
	}

	fp := Fingerprint(fields.Geometry)
	if fp == st.fingerprint && st.phase != PhaseLocalOnly && st.debounce == nil {
		return // геометрия не изменилась
	}
	st.fingerprint = fp

	if continuous {
		a.scheduleDebounce(id, st)
		return
	}

	a.cancelDebounce(st)
	a.emit(id, st, fields)
	a.resumeDeferred(st)
}

func (a *Adapter) onLocalObjectRemoved(h scene.Handle) {
	// Удаленные удаления снимают соответствие до surface.Remove,
	// поэтому известный дескриптор здесь всегда означает действие пользователя.
	id, known := a.ids[h]
	if !known {
		return
	}

	st := a.states[id]
	a.forget(id)

	if st.phase == PhaseLocalOnly {
		return // документ об объекте не знает
	}

	if err := a.doc.ApplyLocalDelete(id); err != nil {
		a.logger.Warn("Failed to delete object from document", "object_id", id, "error", err)
		return
	}

	a.logger.Debug("Local object deleted", "object_id", id)
}

// emit записывает текущее состояние объекта в документ.
func (a *Adapter) emit(id string, st *objectState, fields models.Fields) {
	if err := a.doc.ApplyLocalChange(id, fields); err != nil {
		a.logger.Warn("Failed to apply local change", "object_id", id, "error", err)
		return
	}

	st.phase = PhaseSynced
	delete(a.failed, id)

	a.logger.Debug("Local change emitted", "object_id", id, "kind", fields.Kind)
}

// scheduleDebounce откладывает отправку непрерывного действия до паузы
// Debounce, но не дольше MaxWait от первого события серии.
func (a *Adapter) scheduleDebounce(id string, st *objectState) {
	now := a.timers.Now()
	if st.debounce == nil {
		st.pendingSince = now
	} else {
		st.debounce.Stop()
	}

	delay := a.debounce
	if a.maxWait > 0 {
		if remaining := a.maxWait - now.Sub(st.pendingSince); remaining < delay {
			delay = max(remaining, 0)
		}
	}

	st.phase = PhaseLocallyModified
	st.debounceGen++
	gen := st.debounceGen
	st.debounce = a.timers.AfterFunc(delay, func() {
		a.post(func() { a.flushDebounced(id, st, gen) })
	})
}

func (a *Adapter) cancelDebounce(st *objectState) {
	if st.debounce == nil {
		return
	}
	st.debounce.Stop()
	st.debounce = nil
	st.debounceGen++
}

func (a *Adapter) flushDebounced(id string, st *objectState, gen int) {
	if a.states[id] != st || st.debounceGen != gen || st.debounce == nil {
		return // таймер отменен или объект удален
	}
	st.debounce = nil

	fields, ok := a.surface.Shape(a.handles[id])
	if !ok {
		return
	}

	st.fingerprint = Fingerprint(fields.Geometry)
	a.emit(id, st, fields)
	a.resumeDeferred(st)
}

// resumeDeferred запрашивает сверку, если удаленное обновление было
// отложено на время локального действия.
func (a *Adapter) resumeDeferred(st *objectState) {
	if !st.deferred {
		return
	}
	st.deferred = false
	a.Reconcile()
}

// FlushPending немедленно отправляет отложенные debounce изменения и
// дожидается их записи в документ. Вызывается перед закрытием сессии.
func (a *Adapter) FlushPending() {
	a.call(func() {
		for id, st := range a.states {
			if st.debounce != nil {
				st.debounce.Stop()
				a.flushDebounced(id, st, st.debounceGen)
			}
		}
	})
}
