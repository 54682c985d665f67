package manager

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"onnxd/internal/onnx"
	"onnxd/pkg/types"
)

// createModelFile creates a file of approximately sizeMB megabytes and returns its path.
func createModelFile(t *testing.T, dir, name string, sizeMB int) string {
	t.Helper()
	if sizeMB <= 0 {
		sizeMB = 1
	}
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	defer f.Close()
	block := make([]byte, 1024*1024)
	for i := 0; i < sizeMB; i++ {
		if _, err := f.Write(block); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := f.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	return p
}

// fakeRuntime is a lightweight in-memory runtime used for tests. Sessions
// sum each input row and emit one output row per input row, two columns
// wide, unless overridden.
type fakeRuntime struct {
	mu       sync.Mutex
	inputs   []onnx.TensorInfo
	outputs  []onnx.TensorInfo
	openErr  error
	runErr   error
	opens    int
	closes   int
	running  int
	lastPath string
	lastCfg  onnx.SessionConfig
	// closedMidRun records a Close that overlapped a Run still in progress.
	closedMidRun bool
	// blockCh, when set, makes Run wait until the channel is closed.
	blockCh chan struct{}
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		inputs:  []onnx.TensorInfo{{Name: "features", Shape: []int64{-1, 4}}},
		outputs: []onnx.TensorInfo{{Name: "scores", Shape: []int64{-1, 2}}},
	}
}

func (f *fakeRuntime) Open(path string, cfg onnx.SessionConfig) (onnx.Session, error) {
	f.mu.Lock()
	f.opens++
	f.lastPath = path
	f.lastCfg = cfg
	f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeSession{rt: f}, nil
}

func (f *fakeRuntime) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *fakeRuntime) runningCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeRuntime) closedWhileRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closedMidRun
}

type fakeSession struct {
	rt *fakeRuntime
}

func (s *fakeSession) Inputs() []onnx.TensorInfo  { return s.rt.inputs }
func (s *fakeSession) Outputs() []onnx.TensorInfo { return s.rt.outputs }

func (s *fakeSession) Run(inputs []onnx.Tensor) ([]onnx.Tensor, error) {
	s.rt.mu.Lock()
	s.rt.running++
	s.rt.mu.Unlock()
	defer func() {
		s.rt.mu.Lock()
		s.rt.running--
		s.rt.mu.Unlock()
	}()
	if s.rt.blockCh != nil {
		<-s.rt.blockCh
	}
	if s.rt.runErr != nil {
		return nil, s.rt.runErr
	}
	if len(inputs) == 0 {
		return nil, errors.New("no inputs")
	}
	in := inputs[0]
	rows := in.Shape[0]
	w := s.rt.outputs[0].Width()
	if w <= 0 {
		w = 1
	}
	out := make([]float32, rows*w)
	inW := int64(len(in.Data)) / rows
	for r := int64(0); r < rows; r++ {
		var sum float32
		for c := int64(0); c < inW; c++ {
			sum += in.Data[r*inW+c]
		}
		for c := int64(0); c < w; c++ {
			out[r*w+c] = sum
		}
	}
	return []onnx.Tensor{{Name: s.rt.outputs[0].Name, Shape: []int64{rows, w}, Data: out}}, nil
}

func (s *fakeSession) Close() error {
	s.rt.mu.Lock()
	s.rt.closes++
	if s.rt.running > 0 {
		s.rt.closedMidRun = true
	}
	s.rt.mu.Unlock()
	return nil
}

// newTestManager builds a manager over a temp models dir with one model file
// per name and the fake runtime.
func newTestManager(t *testing.T, rt onnx.Runtime, cfg ManagerConfig, names ...string) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		createModelFile(t, dir, n, 1)
	}
	var reg []types.Model
	for _, n := range names {
		reg = append(reg, types.Model{ID: n, Name: n, Path: filepath.Join(dir, n), SizeMB: 1})
	}
	cfg.Registry = reg
	cfg.ModelsDir = dir
	cfg.Runtime = rt
	cfg.Logger = zerolog.Nop()
	return NewWithConfig(cfg), dir
}

// clearConstrainedEnv guarantees the constrained-job variable is absent for
// the duration of the test.
func clearConstrainedEnv(t *testing.T) {
	t.Helper()
	t.Setenv(onnx.ConstrainedJobEnv, "")
	os.Unsetenv(onnx.ConstrainedJobEnv)
}
