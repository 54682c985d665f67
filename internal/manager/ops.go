package manager

import (
	"context"
	"time"
)

// Reload re-opens an instance's session from its stored path with the
// current thread policy. A failed reload leaves the previous session, its
// captured descriptors, and its validity window untouched and serving.
func (m *Manager) Reload(ctx context.Context, modelID string) error {
	if modelID == "" {
		return ErrModelNotFound("(unspecified)")
	}
	m.mu.RLock()
	inst := m.instances[modelID]
	m.mu.RUnlock()
	if inst == nil {
		// Never loaded: a reload degenerates to an ensure.
		return m.EnsureInstance(ctx, modelID)
	}

	release, err := m.acquireSlot(ctx, inst)
	if err != nil {
		return err
	}
	err = inst.Model.Reload()
	release()

	m.mu.Lock()
	if err != nil {
		// The prior session keeps serving; record the attempt only.
		inst.Err = err.Error()
		m.mu.Unlock()
		m.publisher.Publish(Event{Name: "reload_error", ModelID: modelID, Fields: map[string]any{"error": err.Error()}})
		return err
	}
	inst.State = StateReady
	inst.Err = ""
	inst.LastUsed = time.Now()
	m.loadsTotal++
	m.mu.Unlock()
	m.publisher.Publish(Event{Name: "reload_done", ModelID: modelID, Fields: map[string]any{}})
	return nil
}

// Unload initiates a graceful drain of a model instance and removes it.
// New enqueues are rejected while draining; in-flight and queued work gets
// up to drainTimeout to finish before the session is closed anyway.
func (m *Manager) Unload(modelID string) error {
	if modelID == "" {
		return ErrModelNotFound("(unspecified)")
	}
	m.mu.Lock()
	inst := m.instances[modelID]
	if inst == nil {
		m.mu.Unlock()
		return ErrModelNotFound(modelID)
	}
	inst.State = StateDraining
	m.mu.Unlock()
	m.publisher.Publish(Event{Name: "unload_start", ModelID: modelID, Fields: map[string]any{}})

	// Draining blocks new admissions and new loads, so the queue only
	// shrinks from here. Let queued work run down first.
	deadline := time.Now().Add(m.drainTimeout)
	for len(inst.queueCh) > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	// Take the in-flight slot before tearing down: holding it proves no
	// evaluation or load is still running on the session. The slot is kept
	// through Close so nothing can slip in between.
	select {
	case inst.genCh <- struct{}{}:
	case <-time.After(time.Until(deadline)):
		m.publisher.Publish(Event{Name: "unload_timeout", ModelID: modelID, Fields: map[string]any{
			"inflight": len(inst.genCh), "queue": len(inst.queueCh),
		}})
	}

	m.mu.Lock()
	if inst2 := m.instances[modelID]; inst2 != nil && inst2.charged {
		m.usedEstMB -= inst2.EstMemMB
		if m.usedEstMB < 0 {
			m.usedEstMB = 0
		}
	}
	delete(m.instances, modelID)
	m.mu.Unlock()

	if inst.Model != nil {
		_ = inst.Model.Close()
	}
	m.publisher.Publish(Event{Name: "unload_done", ModelID: modelID, Fields: map[string]any{}})
	return nil
}
