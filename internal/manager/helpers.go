package manager

import (
	"os"

	"onnxd/pkg/types"
)

// getModelByID finds a model in the registry by id.
func (m *Manager) getModelByID(id string) (types.Model, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mdl := range m.registry {
		if mdl.ID == id {
			return mdl, true
		}
	}
	return types.Model{}, false
}

// registerModel inserts or replaces a registry entry. Used by the fetch path
// when a remote artifact lands in the models dir.
func (m *Manager) registerModel(mdl types.Model) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.registry {
		if existing.ID == mdl.ID {
			m.registry[i] = mdl
			return
		}
	}
	m.registry = append(m.registry, mdl)
}

// estimateMemMB estimates resident memory from the model file size (MB).
// Returns a conservative minimum of 1MB when the file cannot be stat'd so an
// unknown size never bypasses budget checks.
func (m *Manager) estimateMemMB(mdl types.Model) int {
	fi, err := os.Stat(mdl.Path)
	if err != nil {
		return 1
	}
	mb := int(fi.Size() / (1024 * 1024))
	if mb <= 0 {
		mb = 1
	}
	return mb
}

// resolveModelID maps an optional request model id to a concrete registry id.
func (m *Manager) resolveModelID(requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	if m.defaultModel == "" {
		return "", modelNotFoundError{id: "(unspecified)"}
	}
	return m.defaultModel, nil
}
