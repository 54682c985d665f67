package onnx

// TensorInfo describes one declared model input or output. A dimension of -1
// is dynamic; by convention dimension 0 is the batch size.
type TensorInfo struct {
	Name  string
	Shape []int64
}

// Width returns the per-row feature width: the second dimension of the shape.
// Returns 0 when the shape has fewer than two dimensions.
func (ti TensorInfo) Width() int64 {
	if len(ti.Shape) < 2 {
		return 0
	}
	return ti.Shape[1]
}

// Tensor is a named, shaped float32 buffer in row-major order.
type Tensor struct {
	Name  string
	Shape []int64
	Data  []float32
}

// NumElements returns the product of the shape's dimensions. Dynamic (-1)
// dimensions make the count undefined; -1 is returned in that case.
func (t Tensor) NumElements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		if d < 0 {
			return -1
		}
		n *= d
	}
	return n
}

// SessionConfig carries the options a session is opened with. It is applied
// once at Open time; a live session is never reconfigured.
type SessionConfig struct {
	// IntraOpThreads bounds the runtime's intra-operation parallelism for a
	// single Run call. 0 leaves the runtime default in place.
	IntraOpThreads int
}

// Runtime opens inference sessions for serialized model graphs. The
// production implementation binds ONNX Runtime; tests supply fakes.
type Runtime interface {
	Open(path string, cfg SessionConfig) (Session, error)
}

// Session is one loaded model graph ready to execute. Implementations are
// not required to be goroutine-safe; callers serialize access.
type Session interface {
	// Inputs and Outputs report the declared IO as captured at open time.
	Inputs() []TensorInfo
	Outputs() []TensorInfo
	// Run executes the graph with the given named inputs and returns all
	// declared outputs. Returned tensor data is owned by the caller and
	// stays valid after subsequent Run or Close calls.
	Run(inputs []Tensor) ([]Tensor, error)
	Close() error
}
