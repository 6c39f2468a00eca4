package adapter

import (
	"bytes"
	"context"
	"fmt"

	"github.com/iudanet/boardsync/internal/client/scene"
	"github.com/iudanet/boardsync/internal/models"
)

// Reconcile запрашивает приведение поверхности к состоянию документа.
// Повторные запросы до начала сверки объединяются в один. Безопасно
// вызывать из любой горутины.
func (a *Adapter) Reconcile() {
	if !a.reconcileQueued.CompareAndSwap(false, true) {
		return
	}
	if !a.post(a.reconcile) {
		a.reconcileQueued.Store(false)
	}
}

// reconcile сравнивает документ с поверхностью:
//   - объекты документа без локального дескриптора создаются;
//   - у существующих объектов обновляется геометрия, при смене содержимого
//     объект пересоздается;
//   - синхронизированные объекты, которых нет в документе, удаляются.
func (a *Adapter) reconcile() {
	a.reconcileQueued.Store(false)

	present := make(map[string]struct{}, len(a.handles))
	for id, fields := range a.doc.Entries() {
		present[id] = struct{}{}

		if h, ok := a.handles[id]; ok {
			a.applyRemoteUpdate(id, h, fields)
			continue
		}
		a.materialize(id, fields)
	}

	for id, h := range a.handles {
		if _, ok := present[id]; ok {
			continue
		}
		if a.states[id].phase == PhaseLocalOnly {
			continue
		}
		a.applyRemoteDelete(id, h)
	}

	for id, m := range a.inflight {
		if _, ok := present[id]; !ok {
			m.cancel()
			delete(a.inflight, id)
		}
	}
	for id := range a.failed {
		if _, ok := present[id]; !ok {
			delete(a.failed, id)
		}
	}
}

func (a *Adapter) applyRemoteUpdate(id string, h scene.Handle, fields models.Fields) {
	st := a.states[id]

	shape, ok := a.surface.Shape(h)
	if !ok {
		a.logger.Warn("Local object vanished, recreating from document",
			"object_id", id,
			"handle", h,
			"error", ErrCorruptLocalState,
		)
		a.forget(id)
		a.materialize(id, fields)
		return
	}

	if shape.Kind != fields.Kind || !bytes.Equal(shape.Payload, fields.Payload) {
		// у поверхности нет операции смены содержимого: объект пересоздается
		a.logger.Debug("Remote content change, recreating local object", "object_id", id)
		a.forget(id)
		_ = a.surface.Remove(h)
		a.materialize(id, fields)
		return
	}

	fp := Fingerprint(fields.Geometry)
	if fp == st.fingerprint {
		return
	}

	if st.debounce != nil {
		// локальное действие в процессе: оно будет отправлено позже и победит
		st.deferred = true
		return
	}

	a.markRemote(id, st)
	st.fingerprint = fp

	if err := a.surface.Transform(h, fields.Geometry); err != nil {
		a.logger.Warn("Failed to apply remote update", "object_id", id, "error", err)
		return
	}

	a.logger.Debug("Remote update applied", "object_id", id)
}

func (a *Adapter) applyRemoteDelete(id string, h scene.Handle) {
	a.forget(id)

	if err := a.surface.Remove(h); err != nil {
		a.logger.Debug("Remote delete of missing object", "object_id", id, "error", err)
		return
	}

	a.logger.Debug("Remote delete applied", "object_id", id)
}

// markRemote выставляет RemoteOriginFlag и запускает grace-таймер его снятия.
func (a *Adapter) markRemote(id string, st *objectState) {
	st.remote = true
	st.phase = PhaseRemotelyModified

	if st.grace != nil {
		st.grace.Stop()
	}
	st.graceGen++
	gen := st.graceGen
	st.grace = a.timers.AfterFunc(a.grace, func() {
		a.post(func() { a.clearRemote(id, st, gen) })
	})
}

func (a *Adapter) clearRemote(id string, st *objectState, gen int) {
	if a.states[id] != st || st.graceGen != gen {
		return
	}

	st.remote = false
	st.grace = nil
	if st.phase == PhaseRemotelyModified {
		st.phase = PhaseSynced
	}
}

// materialize асинхронно создает объект документа на поверхности.
// Результат обрабатывается в цикле адаптера.
func (a *Adapter) materialize(id string, fields models.Fields) {
	if _, busy := a.inflight[id]; busy {
		return
	}
	if prev, ok := a.failed[id]; ok && prev.Equal(fields) {
		return // уже пытались, ошибка повторится
	}

	ctx, cancel := context.WithCancel(a.ctx)
	m := &materialization{cancel: cancel, fields: fields.Clone()}
	a.inflight[id] = m

	go func() {
		h, err := a.surface.Materialize(ctx, m.fields)
		a.post(func() { a.finishMaterialize(id, m, h, err) })
	}()
}

func (a *Adapter) finishMaterialize(id string, m *materialization, h scene.Handle, err error) {
	if a.inflight[id] != m {
		return // отменено сверкой
	}
	delete(a.inflight, id)
	m.cancel()

	if err != nil {
		a.failed[id] = m.fields
		a.logger.Warn("Skipping remote object",
			"object_id", id,
			"kind", m.fields.Kind,
			"error", fmt.Errorf("%w: %w", ErrMaterialization, err),
		)
		return
	}

	if !a.doc.Has(id) {
		return // удален, пока создавался
	}

	if old, dup := a.handles[id]; dup {
		a.logger.Error("Duplicate identifier on surface, replacing local object",
			"object_id", id,
			"handle", old,
			"error", ErrCorruptLocalState,
		)
		a.forget(id)
		_ = a.surface.Remove(old)
	}

	st := &objectState{
		phase:       PhaseSynced,
		fingerprint: Fingerprint(m.fields.Geometry),
	}
	a.ids[h] = id
	a.handles[id] = h
	a.states[id] = st
	a.markRemote(id, st)

	if err := a.surface.SetLocked(h, true); err != nil {
		a.logger.Warn("Failed to lock remote object", "object_id", id, "error", err)
	}
	if err := a.surface.Insert(h); err != nil {
		a.logger.Warn("Failed to insert remote object", "object_id", id, "error", err)
		a.forget(id)
		return
	}

	a.logger.Debug("Remote object materialized", "object_id", id, "kind", m.fields.Kind)

	// документ мог измениться, пока объект создавался
	a.Reconcile()
}
