package manager

import (
	"time"

	"github.com/shirou/gopsutil/v4/mem"

	"onnxd/internal/onnx"
	"onnxd/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	resp := types.StatusResponse{
		BudgetMB:       m.budgetMB,
		UsedMB:         m.usedEstMB,
		MarginMB:       m.marginMB,
		Error:          m.err,
		State:          string(m.state),
		UptimeSeconds:  int64(time.Since(m.startTime) / time.Second),
		ServerTimeUnix: time.Now().Unix(),
		LoadsTotal:     m.loadsTotal,
		EvictionsTotal: m.evictionsTotal,
		FetchesTotal:   m.fetchesTotal,
		RuntimeBuilt:   onnx.RuntimeBuilt(),
	}
	resp.Instances = make([]types.InstanceStatus, 0, len(m.instances))
	loading := 0
	draining := 0
	for _, inst := range m.instances {
		if inst.State == StateLoading {
			loading++
		}
		if inst.State == StateDraining {
			draining++
		}
		is := types.InstanceStatus{
			ModelID:       inst.ID,
			State:         string(inst.State),
			LastUsed:      inst.LastUsed.Unix(),
			EstMemMB:      inst.EstMemMB,
			QueueLen:      len(inst.queueCh),
			Inflight:      len(inst.genCh),
			MaxQueueDepth: cap(inst.queueCh),
			ValidFrom:     onnx.ValidityUnset,
			ValidUntil:    onnx.ValidityUnset,
			Err:           inst.Err,
		}
		if inst.Model != nil {
			is.InputWidth = inst.Model.InputWidth()
			is.OutputWidth = inst.Model.OutputWidth()
			is.ValidFrom = inst.Model.ValidityFrom()
			is.ValidUntil = inst.Model.ValidityUntil()
			is.Threads = inst.Model.Threads()
		}
		resp.Instances = append(resp.Instances, is)
	}
	m.mu.RUnlock()
	resp.LoadingCount = loading
	resp.DrainingCount = draining

	// Host memory snapshot; zero values when the probe fails.
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.Host = types.HostStatus{
			TotalMB:     vm.Total / (1024 * 1024),
			AvailableMB: vm.Available / (1024 * 1024),
			UsedPercent: vm.UsedPercent,
		}
	}
	return resp
}
