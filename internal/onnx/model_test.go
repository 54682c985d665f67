package onnx

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRuntime is an in-memory Runtime used across the Model tests. Its
// sessions emit one output row per input row, outWidth columns wide.
type fakeRuntime struct {
	inputs   []TensorInfo
	outputs  []TensorInfo
	openErr  error
	runErr   error
	opens    int
	lastCfg  SessionConfig
	lastPath string
}

func (f *fakeRuntime) Open(path string, cfg SessionConfig) (Session, error) {
	f.opens++
	f.lastCfg = cfg
	f.lastPath = path
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeSession{rt: f}, nil
}

type fakeSession struct {
	rt     *fakeRuntime
	closed bool
}

func (s *fakeSession) Inputs() []TensorInfo  { return s.rt.inputs }
func (s *fakeSession) Outputs() []TensorInfo { return s.rt.outputs }

func (s *fakeSession) Run(inputs []Tensor) ([]Tensor, error) {
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
			out[r*w+c] = sum + float32(c)
		}
	}
	return []Tensor{{Name: s.rt.outputs[0].Name, Shape: []int64{rows, w}, Data: out}}, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func newTestRuntime() *fakeRuntime {
	return &fakeRuntime{
		inputs:  []TensorInfo{{Name: "features", Shape: []int64{-1, 4}}},
		outputs: []TensorInfo{{Name: "scores", Shape: []int64{-1, 2}}},
	}
}

// clearConstrainedEnv guarantees the constrained-job variable is absent for
// the duration of the test.
func clearConstrainedEnv(t *testing.T) {
	t.Helper()
	t.Setenv(ConstrainedJobEnv, "")
	os.Unsetenv(ConstrainedJobEnv)
}

func TestLoadCapturesWidths(t *testing.T) {
	clearConstrainedEnv(t)
	m := New(newTestRuntime())
	if err := m.Load("model.onnx"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if w := m.InputWidth(); w != 4 {
		t.Fatalf("input width=%d want 4", w)
	}
	if w := m.OutputWidth(); w != 2 {
		t.Fatalf("output width=%d want 2", w)
	}
	if !m.Loaded() {
		t.Fatalf("expected loaded")
	}
	if m.Path() != "model.onnx" {
		t.Fatalf("path=%q", m.Path())
	}
}

func TestLoadFailurePreservesPriorSession(t *testing.T) {
	clearConstrainedEnv(t)
	rt := newTestRuntime()
	m := New(rt)
	if err := m.Load("good.onnx"); err != nil {
		t.Fatalf("load: %v", err)
	}
	rt.openErr = errors.New("corrupt file")
	err := m.Load("bad.onnx")
	if err == nil {
		t.Fatalf("expected load error")
	}
	if !IsLoadError(err) {
		t.Fatalf("expected load error type, got %T", err)
	}
	// The prior session and its metadata must still serve.
	if m.Path() != "good.onnx" {
		t.Fatalf("path=%q want good.onnx", m.Path())
	}
	if w := m.InputWidth(); w != 4 {
		t.Fatalf("input width=%d want 4", w)
	}
	if _, evalErr := m.EvaluateFlat([]float32{1, 2, 3, 4}); evalErr != nil {
		t.Fatalf("evaluate after failed load: %v", evalErr)
	}
}

func TestReloadFailurePreservesEverything(t *testing.T) {
	clearConstrainedEnv(t)
	rt := newTestRuntime()
	m := New(rt)
	if err := m.Load("good.onnx"); err != nil {
		t.Fatalf("load: %v", err)
	}
	f := &fakeFetcher{headers: http.Header{"Valid-From": {"100"}, "Valid-Until": {"200"}}}
	dest := filepath.Join(t.TempDir(), "good.onnx")
	if err := m.FetchAndLoad(context.Background(), f, "x/y", 1, dest); err != nil {
		t.Fatalf("fetch and load: %v", err)
	}
	rt.openErr = errors.New("runtime init failed")
	if err := m.Reload(); err == nil {
		t.Fatalf("expected reload error")
	}
	if m.ValidityFrom() != 100 || m.ValidityUntil() != 200 {
		t.Fatalf("validity=(%d,%d) want (100,200)", m.ValidityFrom(), m.ValidityUntil())
	}
	if w := m.InputWidth(); w != 4 {
		t.Fatalf("input width=%d want 4", w)
	}
	if _, err := m.EvaluateFlat([]float32{1, 2, 3, 4}); err != nil {
		t.Fatalf("evaluate after failed reload: %v", err)
	}
}

func TestReloadWithoutLoad(t *testing.T) {
	m := New(newTestRuntime())
	if err := m.Reload(); err == nil || !IsLoadError(err) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestLoadRejectsModelWithoutIO(t *testing.T) {
	clearConstrainedEnv(t)
	rt := &fakeRuntime{}
	m := New(rt)
	err := m.Load("empty.onnx")
	if err == nil || !IsLoadError(err) {
		t.Fatalf("expected load error, got %v", err)
	}
	if m.Loaded() {
		t.Fatalf("no session must be committed")
	}
}

func TestEvaluateFlatRowCount(t *testing.T) {
	clearConstrainedEnv(t)
	m := New(newTestRuntime())
	if err := m.Load("model.onnx"); err != nil {
		t.Fatalf("load: %v", err)
	}
	out, err := m.EvaluateFlat(make([]float32, 12))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(out.Shape) != 2 || out.Shape[0] != 3 {
		t.Fatalf("output shape=%v want 3 rows", out.Shape)
	}
	if len(out.Data) != 6 {
		t.Fatalf("output len=%d want 6", len(out.Data))
	}
}

func TestEvaluateFlatNonDivisible(t *testing.T) {
	clearConstrainedEnv(t)
	m := New(newTestRuntime())
	if err := m.Load("model.onnx"); err != nil {
		t.Fatalf("load: %v", err)
	}
	_, err := m.EvaluateFlat(make([]float32, 10))
	if err == nil || !IsShapeError(err) {
		t.Fatalf("expected shape error, got %v", err)
	}
}

func TestEvaluateFlatBeforeLoad(t *testing.T) {
	m := New(newTestRuntime())
	_, err := m.EvaluateFlat([]float32{1, 2, 3, 4})
	if err == nil || !IsShapeError(err) {
		t.Fatalf("expected shape error before load, got %v", err)
	}
}

func TestEvaluateRejectsMismatchedTensor(t *testing.T) {
	clearConstrainedEnv(t)
	m := New(newTestRuntime())
	if err := m.Load("model.onnx"); err != nil {
		t.Fatalf("load: %v", err)
	}
	_, err := m.Evaluate([]Tensor{{Name: "features", Shape: []int64{2, 4}, Data: make([]float32, 5)}})
	if err == nil || !IsShapeError(err) {
		t.Fatalf("expected shape error, got %v", err)
	}
}

func TestEvaluateRuntimeFailure(t *testing.T) {
	clearConstrainedEnv(t)
	rt := newTestRuntime()
	m := New(rt)
	if err := m.Load("model.onnx"); err != nil {
		t.Fatalf("load: %v", err)
	}
	rt.runErr = errors.New("unsupported operator")
	_, err := m.EvaluateFlat(make([]float32, 4))
	if err == nil || !IsEvalError(err) {
		t.Fatalf("expected eval error, got %v", err)
	}
	if got := err.Error(); !strings.Contains(got, "unsupported operator") {
		t.Fatalf("diagnostic lost: %q", got)
	}
}

func TestConstrainedJobForcesSingleThreadOnNextLoad(t *testing.T) {
	clearConstrainedEnv(t)
	rt := newTestRuntime()
	m := New(rt)
	m.SetThreads(8)
	if err := m.Load("model.onnx"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if rt.lastCfg.IntraOpThreads != 8 {
		t.Fatalf("threads=%d want 8", rt.lastCfg.IntraOpThreads)
	}
	// The open session keeps its 8 threads; the policy bites on the next load.
	t.Setenv(ConstrainedJobEnv, "16")
	if m.Threads() != 8 {
		t.Fatalf("policy must not change before the next load")
	}
	if err := m.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if rt.lastCfg.IntraOpThreads != 1 {
		t.Fatalf("threads=%d want 1 under constrained slot", rt.lastCfg.IntraOpThreads)
	}
	if m.Threads() != 1 {
		t.Fatalf("policy=%d want 1", m.Threads())
	}
}

// fakeFetcher writes canned bytes to dest and serves canned headers.
type fakeFetcher struct {
	fetchErr   error
	headersErr error
	headers    http.Header
	fetches    int
}

func (f *fakeFetcher) Fetch(ctx context.Context, remotePath string, timestamp int64, dest string) error {
	if f.fetchErr != nil {
		return f.fetchErr
	}
	f.fetches++
	return os.WriteFile(dest, []byte("model-bytes"), 0o644)
}

func (f *fakeFetcher) Headers(ctx context.Context, remotePath string, timestamp int64) (http.Header, error) {
	if f.headersErr != nil {
		return nil, f.headersErr
	}
	if f.headers == nil {
		return http.Header{}, nil
	}
	return f.headers, nil
}

func TestFetchAndLoadValidityMapping(t *testing.T) {
	clearConstrainedEnv(t)
	m := New(newTestRuntime())
	f := &fakeFetcher{headers: http.Header{"Valid-From": {"100"}, "Valid-Until": {"200"}}}
	dest := filepath.Join(t.TempDir(), "m.onnx")
	if err := m.FetchAndLoad(context.Background(), f, "Analysis/PID", 1655000000, dest); err != nil {
		t.Fatalf("fetch and load: %v", err)
	}
	if m.ValidityFrom() != 100 {
		t.Fatalf("valid from=%d want 100", m.ValidityFrom())
	}
	if m.ValidityUntil() != 200 {
		t.Fatalf("valid until=%d want 200", m.ValidityUntil())
	}
}

func TestFetchAndLoadHexValidity(t *testing.T) {
	clearConstrainedEnv(t)
	m := New(newTestRuntime())
	f := &fakeFetcher{headers: http.Header{"Valid-From": {"0x64"}, "Valid-Until": {"0xc8"}}}
	dest := filepath.Join(t.TempDir(), "m.onnx")
	if err := m.FetchAndLoad(context.Background(), f, "p", 1, dest); err != nil {
		t.Fatalf("fetch and load: %v", err)
	}
	if m.ValidityFrom() != 100 || m.ValidityUntil() != 200 {
		t.Fatalf("validity=(%d,%d) want (100,200)", m.ValidityFrom(), m.ValidityUntil())
	}
}

func TestFetchAndLoadMissingHeadersKeepUnset(t *testing.T) {
	clearConstrainedEnv(t)
	m := New(newTestRuntime())
	f := &fakeFetcher{}
	dest := filepath.Join(t.TempDir(), "m.onnx")
	if err := m.FetchAndLoad(context.Background(), f, "p", 1, dest); err != nil {
		t.Fatalf("fetch and load: %v", err)
	}
	if m.ValidityFrom() != ValidityUnset || m.ValidityUntil() != ValidityUnset {
		t.Fatalf("validity=(%d,%d) want unset", m.ValidityFrom(), m.ValidityUntil())
	}
}

func TestFetchFailureLeavesModelUntouched(t *testing.T) {
	clearConstrainedEnv(t)
	rt := newTestRuntime()
	m := New(rt)
	if err := m.Load("good.onnx"); err != nil {
		t.Fatalf("load: %v", err)
	}
	f := &fakeFetcher{fetchErr: errors.New("store unreachable")}
	dest := filepath.Join(t.TempDir(), "m.onnx")
	if err := m.FetchAndLoad(context.Background(), f, "p", 1, dest); err == nil {
		t.Fatalf("expected fetch error")
	}
	if m.Path() != "good.onnx" {
		t.Fatalf("path=%q", m.Path())
	}
	if m.ValidityFrom() != ValidityUnset {
		t.Fatalf("validity must stay unset after failed fetch")
	}
	if _, err := m.EvaluateFlat([]float32{1, 2, 3, 4}); err != nil {
		t.Fatalf("evaluate after failed fetch: %v", err)
	}
}

func TestDownloadDoesNotTouchState(t *testing.T) {
	clearConstrainedEnv(t)
	m := New(newTestRuntime())
	f := &fakeFetcher{headers: http.Header{"Valid-From": {"100"}, "Valid-Until": {"200"}}}
	dest := filepath.Join(t.TempDir(), "m.onnx")
	if err := m.Download(context.Background(), f, "p", 1, dest); err != nil {
		t.Fatalf("download: %v", err)
	}
	if m.Loaded() {
		t.Fatalf("download must not load")
	}
	if m.ValidityFrom() != ValidityUnset || m.ValidityUntil() != ValidityUnset {
		t.Fatalf("download must not set validity")
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("downloaded file missing: %v", err)
	}
}

func TestCloseReleasesSession(t *testing.T) {
	clearConstrainedEnv(t)
	rt := newTestRuntime()
	m := New(rt)
	if err := m.Load("model.onnx"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if m.Loaded() {
		t.Fatalf("still loaded after close")
	}
	if _, err := m.Evaluate([]Tensor{{Name: "features", Shape: []int64{1, 4}, Data: make([]float32, 4)}}); err == nil {
		t.Fatalf("expected error after close")
	}
}
