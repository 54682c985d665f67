//go:build onnx

package onnx

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// runtimeBuilt indicates this binary was compiled with the real runtime.
const runtimeBuilt = true

// SharedLibraryEnv points the binding at the ONNX Runtime shared library
// when it is not on the default loader path.
const SharedLibraryEnv = "ONNXD_ORT_LIBRARY"

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// initEnvironment initializes the process-wide ONNX Runtime environment.
// The binding requires exactly one environment per process; sessions share it.
func initEnvironment() error {
	ortInitOnce.Do(func() {
		if p := os.Getenv(SharedLibraryEnv); p != "" {
			ort.SetSharedLibraryPath(p)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// NewRuntime returns the ONNX Runtime-backed implementation.
func NewRuntime() Runtime { return ortRuntime{} }

type ortRuntime struct{}

func (ortRuntime) Open(path string, cfg SessionConfig) (Session, error) {
	if err := initEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}
	rawIns, rawOuts, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, err
	}
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()
	if cfg.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return nil, err
		}
	}
	inputs := make([]TensorInfo, len(rawIns))
	inNames := make([]string, len(rawIns))
	for i, in := range rawIns {
		inNames[i] = in.Name
		inputs[i] = TensorInfo{Name: in.Name, Shape: append([]int64(nil), in.Dimensions...)}
	}
	outputs := make([]TensorInfo, len(rawOuts))
	outNames := make([]string, len(rawOuts))
	for i, out := range rawOuts {
		outNames[i] = out.Name
		outputs[i] = TensorInfo{Name: out.Name, Shape: append([]int64(nil), out.Dimensions...)}
	}
	sess, err := ort.NewDynamicAdvancedSession(path, inNames, outNames, opts)
	if err != nil {
		return nil, err
	}
	return &ortSession{sess: sess, inputs: inputs, outputs: outputs}, nil
}

type ortSession struct {
	sess    *ort.DynamicAdvancedSession
	inputs  []TensorInfo
	outputs []TensorInfo
}

func (s *ortSession) Inputs() []TensorInfo  { return s.inputs }
func (s *ortSession) Outputs() []TensorInfo { return s.outputs }

// Run matches the given tensors to the session's declared inputs by name and
// executes the graph. Every declared input must be supplied; the binding
// submits values positionally in declaration order.
func (s *ortSession) Run(inputs []Tensor) ([]Tensor, error) {
	inVals := make([]ort.Value, len(s.inputs))
	for i, decl := range s.inputs {
		in, ok := findTensor(inputs, decl.Name)
		if !ok {
			destroyValues(inVals[:i])
			return nil, fmt.Errorf("missing input %q", decl.Name)
		}
		t, err := ort.NewTensor(ort.NewShape(in.Shape...), in.Data)
		if err != nil {
			destroyValues(inVals[:i])
			return nil, fmt.Errorf("input %q: %w", decl.Name, err)
		}
		inVals[i] = t
	}
	defer destroyValues(inVals)

	// Nil entries let the runtime allocate outputs with their true shapes.
	outVals := make([]ort.Value, len(s.outputs))
	if err := s.sess.Run(inVals, outVals); err != nil {
		return nil, err
	}
	defer destroyValues(outVals)

	// Copy out before Destroy: the backing buffers belong to the runtime.
	outs := make([]Tensor, len(outVals))
	for i, v := range outVals {
		t, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("output %q: unsupported tensor element type", s.outputs[i].Name)
		}
		outs[i] = Tensor{
			Name:  s.outputs[i].Name,
			Shape: append([]int64(nil), t.GetShape()...),
			Data:  append([]float32(nil), t.GetData()...),
		}
	}
	return outs, nil
}

func (s *ortSession) Close() error {
	if s.sess == nil {
		return nil
	}
	err := s.sess.Destroy()
	s.sess = nil
	return err
}

func findTensor(tensors []Tensor, name string) (Tensor, bool) {
	for _, t := range tensors {
		if t.Name == name {
			return t, true
		}
	}
	return Tensor{}, false
}

func destroyValues(vals []ort.Value) {
	for _, v := range vals {
		if v != nil {
			_ = v.Destroy()
		}
	}
}
