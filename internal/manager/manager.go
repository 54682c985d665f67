package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"onnxd/internal/artifact"
	"onnxd/internal/onnx"
	"onnxd/pkg/types"
)

// Manager orchestrates model instances: registry lookup, load/reload,
// admission, eviction, fetch, and status. It provides the external
// synchronization the onnx.Model concurrency contract requires.
type Manager struct {
	mu           sync.RWMutex
	state        State
	err          string
	registry     []types.Model
	modelsDir    string
	budgetMB     int
	marginMB     int
	defaultModel string
	instances    map[string]*Instance
	usedEstMB    int

	// Queue config
	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration

	// Thread policy applied at load time (0 = runtime default).
	threads int

	runtime   onnx.Runtime
	fetcher   *artifact.Client
	journal   *artifact.Journal
	publisher EventPublisher
	log       zerolog.Logger

	startTime time.Time
	// Counters, guarded by mu.
	loadsTotal     uint64
	evictionsTotal uint64
	fetchesTotal   uint64
}

// New constructs a Manager with package defaults and the stock runtime.
func New(reg []types.Model, budgetMB, marginMB int, defaultModel string) *Manager {
	return NewWithConfig(ManagerConfig{
		Registry:     reg,
		BudgetMB:     budgetMB,
		MarginMB:     marginMB,
		DefaultModel: defaultModel,
	})
}

// Ready reports whether at least one instance can serve, or nothing has
// failed yet and the manager is simply idle.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == StateError {
		return false
	}
	for _, inst := range m.instances {
		if inst.State == StateReady {
			return true
		}
	}
	return m.state == StateReady
}

// ListModels returns a copy of the registry.
func (m *Manager) ListModels() []types.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Model, len(m.registry))
	copy(out, m.registry)
	return out
}

// DefaultModel returns the configured default model id.
func (m *Manager) DefaultModel() string { return m.defaultModel }

// InstancesCount returns the number of managed instances; exported for the
// loaded-instances gauge registered by the daemon.
func (m *Manager) InstancesCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}

// ModelDetail builds the detail view for one registry entry, merging in the
// live instance state when one exists.
func (m *Manager) ModelDetail(id string) (types.ModelDetail, error) {
	mdl, ok := m.getModelByID(id)
	if !ok {
		return types.ModelDetail{}, ErrModelNotFound(id)
	}
	d := types.ModelDetail{Model: mdl, State: "unloaded", ValidFrom: onnx.ValidityUnset, ValidUntil: onnx.ValidityUnset}
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst := m.instances[id]
	if inst == nil {
		return d, nil
	}
	d.State = string(inst.State)
	if inst.Model == nil {
		return d, nil
	}
	d.Inputs = tensorDescs(inst.Model.Inputs())
	d.Outputs = tensorDescs(inst.Model.Outputs())
	d.InputWidth = inst.Model.InputWidth()
	d.OutputWidth = inst.Model.OutputWidth()
	d.ValidFrom = inst.Model.ValidityFrom()
	d.ValidUntil = inst.Model.ValidityUntil()
	d.Threads = inst.Model.Threads()
	return d, nil
}

// Close unloads all instances. Used on daemon shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		_ = m.Unload(id)
	}
	return nil
}

func tensorDescs(infos []onnx.TensorInfo) []types.TensorDesc {
	out := make([]types.TensorDesc, len(infos))
	for i, ti := range infos {
		out[i] = types.TensorDesc{Name: ti.Name, Shape: ti.Shape, Dims: onnx.FormatShape(ti.Shape)}
	}
	return out
}
