package manager

import (
	"time"

	"onnxd/internal/onnx"
)

// State represents lifecycle state of the manager/instances.
type State string

const (
	StateReady    State = "ready"
	StateLoading  State = "loading"
	StateDraining State = "draining"
	StateError    State = "error"
)

// Instance is one live model context (one per model id). It wraps exactly
// one onnx.Model; the queueing primitives serialize all access to it.
type Instance struct {
	ID       string
	State    State
	LastUsed time.Time
	EstMemMB int
	// Last load/reload error observed on this instance, if any.
	Err string
	// Remote provenance of the last fetch that produced this instance's
	// model file; empty when it was loaded from the local registry only.
	RemotePath string
	// charged marks that EstMemMB is counted in the manager's budget
	// accounting; only set once a load actually succeeds.
	charged bool
	// Queueing primitives.
	genCh   chan struct{} // size 1: single in-flight evaluation
	queueCh chan struct{} // buffered: queue slots
	// Model backing this instance. Only the holder of the genCh slot (or
	// the manager during ensure/reload/unload drain) may touch it.
	Model *onnx.Model
}
