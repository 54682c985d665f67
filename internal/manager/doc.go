// Package manager provides lifecycle, admission, and evaluation coordination
// for model instances. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: internal state types (State, Instance).
//   - errors.go: error types and helpers (IsTooBusy, IsModelNotFound).
//   - helpers.go: small utilities (model lookup, memory estimation).
//   - admission.go: per-instance queueing and evaluation admission.
//   - ensure.go: EnsureInstance lifecycle and loading.
//   - evict.go: eviction logic to fit within the memory budget.
//   - evaluate.go: evaluation entry point (flat and prepared tensors).
//   - fetch.go: artifact fetch + register + load, journal-aware.
//   - ops.go: Reload and Unload (graceful drain).
//   - status_report.go: Status reporting for /status.
//   - events.go / eventpub_memory.go: lifecycle event publishing.
//
// Each instance wraps one onnx.Model, which is not goroutine-safe; the
// per-instance admission queue serializes evaluate against load, reload,
// and unload on the same instance. External packages should treat this
// package as the orchestration layer and use public methods only.
package manager
