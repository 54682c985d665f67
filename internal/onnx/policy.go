package onnx

import (
	"os"

	"github.com/shirou/gopsutil/v4/cpu"
)

// ConstrainedJobEnv is set by the grid job scheduler on shared-slot
// allocations. Presence, with any value, means the process must not spawn
// its own thread pool.
const ConstrainedJobEnv = "ALIEN_JDL_CPUCORES"

// DetectConstrainedJob reports whether the process runs in a constrained
// shared-cluster job slot. The variable's value is returned for logging
// only; the thread policy collapses to 1 regardless of its content.
func DetectConstrainedJob() (string, bool) {
	return os.LookupEnv(ConstrainedJobEnv)
}

// HostCores returns the machine's physical core count, falling back to the
// logical count when the physical probe fails. Returns 0 when unknown.
func HostCores() int {
	if n, err := cpu.Counts(false); err == nil && n > 0 {
		return n
	}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return 0
}
