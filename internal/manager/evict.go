package manager

import "time"

// evictUntilFits removes LRU idle instances until requiredMB fits within
// budget + margin. Instances with in-flight or queued work are skipped;
// evicted sessions are closed.
func (m *Manager) evictUntilFits(requiredMB int) error {
	deadline := time.Now().Add(1 * time.Second)
	for {
		m.mu.Lock()
		fits := (m.usedEstMB + requiredMB + m.marginMB) <= m.budgetMB
		if fits {
			m.mu.Unlock()
			return nil
		}
		// Pick the LRU idle instance (no in-flight and no queued requests).
		var lru *Instance
		for _, inst := range m.instances {
			if len(inst.genCh) > 0 || len(inst.queueCh) > 0 {
				continue
			}
			if lru == nil || inst.LastUsed.Before(lru.LastUsed) {
				lru = inst
			}
		}
		if lru == nil {
			// Nothing evictable; let the load proceed over budget rather
			// than fail it.
			m.mu.Unlock()
			return nil
		}
		delete(m.instances, lru.ID)
		if lru.charged {
			m.usedEstMB -= lru.EstMemMB
			if m.usedEstMB < 0 {
				m.usedEstMB = 0
			}
		}
		m.evictionsTotal++
		m.mu.Unlock()

		if lru.Model != nil {
			_ = lru.Model.Close()
		}
		m.publisher.Publish(Event{Name: "evicted", ModelID: lru.ID, Fields: map[string]any{"est_mem_mb": lru.EstMemMB}})

		if time.Now().After(deadline) {
			return nil
		}
		// Loop to re-check.
	}
}
