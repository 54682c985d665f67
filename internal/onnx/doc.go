// Package onnx is the inference adapter core: it owns runtime sessions for
// serialized ONNX model graphs and evaluates float32 batches against them.
// It is structured into small files by concern:
//
//   - runtime.go: the Runtime/Session boundary and tensor value types.
//   - model.go: the Model adapter (load/reload, fetch, evaluate, getters).
//   - shape.go: dimension-string formatting.
//   - policy.go: constrained-job detection and host core probing.
//   - errors.go: error types and predicates (IsLoadError, IsShapeError,
//     IsEvalError) plus ErrRuntimeUnavailable.
//
// Build tags and runtimes:
//
//   - ONNX Runtime (in-process): uses the onnxruntime_go binding. Enabled
//     with `-tags=onnx`; runtime_ort.go. Requires the ONNX Runtime shared
//     library at run time (see SharedLibraryEnv).
//   - Default builds compile runtime_stub.go instead; Open fails with
//     ErrRuntimeUnavailable so callers degrade cleanly.
//
// A Model is not goroutine-safe; the orchestration layer serializes
// load/reload against evaluate per instance.
package onnx

// RuntimeBuilt reports whether this binary carries the real runtime binding.
func RuntimeBuilt() bool { return runtimeBuilt }
