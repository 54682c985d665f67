//go:build !onnx

package onnx

// This stub keeps default builds and CI free of the ONNX Runtime shared
// library. The real binding lives in runtime_ort.go behind the 'onnx' tag.

// runtimeBuilt indicates this binary was compiled without the real runtime.
const runtimeBuilt = false

// NewRuntime returns a runtime whose Open always fails with
// ErrRuntimeUnavailable.
func NewRuntime() Runtime { return stubRuntime{} }

type stubRuntime struct{}

func (stubRuntime) Open(path string, cfg SessionConfig) (Session, error) {
	return nil, ErrRuntimeUnavailable
}
