package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"onnxd/internal/httpapi"
	"onnxd/internal/manager"
	"onnxd/internal/onnx"
	"onnxd/internal/registry"
)

// createModelsDir creates a temporary directory populated with small .onnx
// files and returns the directory path.
func createModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, bytes.Repeat([]byte{0}, 1024), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", p, err)
		}
	}
	return dir
}

// memRuntime is an in-memory inference runtime. Sessions declare one
// (-1,4) input and one (-1,2) output and emit per-row input sums.
type memRuntime struct {
	mu      sync.Mutex
	opens   int
	blockCh chan struct{}
}

func (f *memRuntime) Open(path string, cfg onnx.SessionConfig) (onnx.Session, error) {
	f.mu.Lock()
	f.opens++
	f.mu.Unlock()
	return &memSession{rt: f}, nil
}

type memSession struct {
	rt *memRuntime
}

func (s *memSession) Inputs() []onnx.TensorInfo {
	return []onnx.TensorInfo{{Name: "features", Shape: []int64{-1, 4}}}
}

func (s *memSession) Outputs() []onnx.TensorInfo {
	return []onnx.TensorInfo{{Name: "scores", Shape: []int64{-1, 2}}}
}

func (s *memSession) Run(inputs []onnx.Tensor) ([]onnx.Tensor, error) {
	if s.rt.blockCh != nil {
		<-s.rt.blockCh
	}
	in := inputs[0]
	rows := in.Shape[0]
	out := make([]float32, rows*2)
	inW := int64(len(in.Data)) / rows
	for r := int64(0); r < rows; r++ {
		var sum float32
		for c := int64(0); c < inW; c++ {
			sum += in.Data[r*inW+c]
		}
		out[r*2] = sum
		out[r*2+1] = sum
	}
	return []onnx.Tensor{{Name: "scores", Shape: []int64{rows, 2}, Data: out}}, nil
}

func (s *memSession) Close() error { return nil }

// newServerForDir scans modelsDir and serves the full API over a manager
// backed by rt.
func newServerForDir(t *testing.T, modelsDir string, rt onnx.Runtime, cfg manager.ManagerConfig) (*httptest.Server, *manager.Manager) {
	t.Helper()
	reg, err := registry.LoadDir(modelsDir)
	if err != nil {
		t.Fatalf("scan models: %v", err)
	}
	cfg.Registry = reg
	cfg.ModelsDir = modelsDir
	cfg.Runtime = rt
	cfg.Logger = zerolog.Nop()
	mgr := manager.NewWithConfig(cfg)
	t.Cleanup(func() { mgr.Close() })
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(srv.Close)
	return srv, mgr
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
