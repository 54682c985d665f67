package manager

import (
	"context"
	"time"
)

// beginEvaluation reserves a queue slot and then the single in-flight slot
// for the given instance. Returns a release func to be deferred. This is
// the serialization point between evaluate and load/reload/unload on the
// same instance.
func (m *Manager) beginEvaluation(ctx context.Context, modelID string) (func(), error) {
	m.mu.RLock()
	inst := m.instances[modelID]
	var draining bool
	if inst != nil {
		draining = inst.State == StateDraining
	}
	m.mu.RUnlock()
	if inst == nil {
		return func() {}, modelNotFoundError{id: modelID}
	}
	if draining {
		return func() {}, tooBusyError{modelID: modelID}
	}

	// Try to reserve a queue slot with timeout.
	select {
	case inst.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-time.After(m.maxWait):
		return func() {}, tooBusyError{modelID: modelID}
	}

	// Wait to acquire the single in-flight slot.
	acquired := false
	defer func() {
		if !acquired {
			<-inst.queueCh
		}
	}()
	select {
	case inst.genCh <- struct{}{}:
		acquired = true
		m.mu.Lock()
		inst.LastUsed = time.Now()
		m.mu.Unlock()
		return func() { <-inst.genCh; <-inst.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-time.After(m.maxWait):
		return func() {}, tooBusyError{modelID: modelID}
	}
}
