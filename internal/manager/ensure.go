package manager

import (
	"context"
	"time"

	"onnxd/internal/onnx"
)

// EnsureInstance makes sure a ready instance exists for modelID, loading the
// model through the runtime on first use. A failed load records the error on
// the instance and leaves no half-committed session: evaluations against it
// keep failing with the load error until a later ensure succeeds.
func (m *Manager) EnsureInstance(ctx context.Context, modelID string) error {
	startTs := time.Now()
	if modelID == "" {
		modelID = m.defaultModel
		if modelID == "" {
			return nil
		}
	}
	m.publisher.Publish(Event{Name: "ensure_start", ModelID: modelID, Fields: map[string]any{}})

	m.mu.RLock()
	inst, ok := m.instances[modelID]
	ready := ok && inst != nil && inst.State == StateReady
	m.mu.RUnlock()
	if ready {
		// Upgrade to write lock to safely mutate LastUsed and re-check state.
		m.mu.Lock()
		if inst2, ok2 := m.instances[modelID]; ok2 && inst2 != nil && inst2.State == StateReady {
			inst2.LastUsed = time.Now()
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()
		// State changed in between; continue with the ensure path.
	}

	mdl, ok := m.getModelByID(modelID)
	if !ok {
		m.publisher.Publish(Event{Name: "ensure_model_not_found", ModelID: modelID, Fields: map[string]any{}})
		return ErrModelNotFound(modelID)
	}
	reqMB := m.estimateMemMB(mdl)

	// Evict until it fits budget + margin, if a budget is configured.
	if m.budgetMB > 0 {
		if err := m.evictUntilFits(reqMB); err != nil {
			m.publisher.Publish(Event{Name: "ensure_budget_fail", ModelID: modelID, Fields: map[string]any{"error": err.Error()}})
			return err
		}
	}

	// Create or mark the instance as loading.
	m.mu.Lock()
	inst, existed := m.instances[modelID]
	if !existed || inst == nil {
		model := onnx.New(m.runtime)
		model.SetLogger(m.log.With().Str("model", modelID).Logger())
		model.SetThreads(m.threads)
		inst = &Instance{
			ID:       modelID,
			State:    StateLoading,
			LastUsed: time.Now(),
			EstMemMB: reqMB,
			genCh:    make(chan struct{}, 1),
			queueCh:  make(chan struct{}, m.maxQueueDepth),
			Model:    model,
		}
		m.instances[modelID] = inst
	} else {
		if inst.State == StateDraining {
			// An unload is tearing this instance down; reloading it here
			// would re-open admission under the drain.
			m.mu.Unlock()
			return tooBusyError{modelID: modelID}
		}
		inst.State = StateLoading
		inst.EstMemMB = reqMB
		inst.LastUsed = time.Now()
	}
	m.mu.Unlock()

	// Hold the single in-flight slot while loading so an ensure never races
	// an evaluation on the same session.
	release, err := m.acquireSlot(ctx, inst)
	if err != nil {
		return err
	}
	err = inst.Model.Load(mdl.Path)
	release()

	m.mu.Lock()
	if err != nil {
		// The errored instance stays in the map for status visibility, but
		// a session that never opened is not charged against the budget.
		inst.State = StateError
		inst.Err = err.Error()
		m.mu.Unlock()
		m.publisher.Publish(Event{Name: "load_error", ModelID: modelID, Fields: map[string]any{"error": err.Error()}})
		return err
	}
	if !inst.charged {
		m.usedEstMB += reqMB
		inst.charged = true
	}
	inst.State = StateReady
	inst.Err = ""
	inst.LastUsed = time.Now()
	m.loadsTotal++
	m.mu.Unlock()
	m.publisher.Publish(Event{Name: "ensure_ready", ModelID: modelID, Fields: map[string]any{
		"dur_ms": int(time.Since(startTs) / time.Millisecond),
	}})
	return nil
}
