package onnx

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
)

// ValidityUnset marks a validity window bound that no fetch has populated.
const ValidityUnset int64 = -1

// Artifact store response headers carrying the validity window.
const (
	headerValidFrom  = "Valid-From"
	headerValidUntil = "Valid-Until"
)

// Fetcher retrieves model artifacts from a path+timestamp addressed store.
// Fetch downloads the blob for remotePath at timestamp into dest; Headers
// reports the store's metadata headers for the same coordinates.
type Fetcher interface {
	Fetch(ctx context.Context, remotePath string, timestamp int64, dest string) error
	Headers(ctx context.Context, remotePath string, timestamp int64) (http.Header, error)
}

// Model owns one runtime session and the metadata captured when it was
// opened: declared IO, the source path, and the validity window of the last
// fetched artifact.
//
// A Model is not goroutine-safe. Load, Reload, and Evaluate mutate or use
// the session in place; callers serialize them externally (one Model per
// worker, or an exclusive lock around load/reload vs evaluate).
type Model struct {
	rt      Runtime
	sess    Session
	path    string
	threads int

	inputs  []TensorInfo
	outputs []TensorInfo

	validFrom  int64
	validUntil int64

	log zerolog.Logger
}

// New returns an unloaded Model bound to the given runtime.
func New(rt Runtime) *Model {
	return &Model{
		rt:         rt,
		validFrom:  ValidityUnset,
		validUntil: ValidityUnset,
		log:        zerolog.Nop(),
	}
}

// SetLogger installs the logger used for load-time and fetch-time events.
func (m *Model) SetLogger(l zerolog.Logger) { m.log = l }

// SetThreads sets the intra-op thread policy applied on the next Load or
// Reload. 0 keeps the runtime default. An already-open session is unaffected.
func (m *Model) SetThreads(n int) {
	if n < 0 {
		n = 0
	}
	m.threads = n
}

// Threads returns the current thread policy.
func (m *Model) Threads() int { return m.threads }

// Path returns the model file the current session was loaded from.
func (m *Model) Path() string { return m.path }

// Loaded reports whether a session is open.
func (m *Model) Loaded() bool { return m.sess != nil }

// Inputs returns a copy of the declared input descriptors.
func (m *Model) Inputs() []TensorInfo { return copyInfos(m.inputs) }

// Outputs returns a copy of the declared output descriptors.
func (m *Model) Outputs() []TensorInfo { return copyInfos(m.outputs) }

// InputWidth returns the per-row feature width of the first declared input,
// or 0 before the first successful load.
func (m *Model) InputWidth() int64 {
	if len(m.inputs) == 0 {
		return 0
	}
	return m.inputs[0].Width()
}

// OutputWidth returns the per-row feature width of the first declared
// output, or 0 before the first successful load.
func (m *Model) OutputWidth() int64 {
	if len(m.outputs) == 0 {
		return 0
	}
	return m.outputs[0].Width()
}

// ValidityFrom returns the start of the last fetched artifact's validity
// window, or ValidityUnset.
func (m *Model) ValidityFrom() int64 { return m.validFrom }

// ValidityUntil returns the end of the last fetched artifact's validity
// window, or ValidityUnset.
func (m *Model) ValidityUntil() int64 { return m.validUntil }

// SetValidity seeds the validity window, for callers restoring a previously
// fetched artifact's metadata (e.g. from a local fetch journal).
func (m *Model) SetValidity(from, until int64) {
	m.validFrom = from
	m.validUntil = until
}

// Load opens a session for the model file at path with the current thread
// policy and captures the declared IO. The commit is atomic: on failure the
// prior session and its captured descriptors stay in place and usable; on
// success the prior session is closed after the swap.
func (m *Model) Load(path string) error {
	if val, ok := DetectConstrainedJob(); ok && m.threads != 1 {
		m.log.Info().Str("slot_cores", val).
			Msg("constrained job slot detected, forcing single-threaded session")
		m.threads = 1
	}
	sess, err := m.rt.Open(path, SessionConfig{IntraOpThreads: m.threads})
	if err != nil {
		return loadError{path: path, err: err}
	}
	ins := copyInfos(sess.Inputs())
	outs := copyInfos(sess.Outputs())
	if len(ins) == 0 || len(outs) == 0 {
		_ = sess.Close()
		return loadError{path: path, err: errors.New("model declares no inputs or outputs")}
	}
	old := m.sess
	m.sess = sess
	m.path = path
	m.inputs = ins
	m.outputs = outs
	if old != nil {
		_ = old.Close()
	}
	for _, in := range ins {
		m.log.Info().Str("name", in.Name).Str("shape", FormatShape(in.Shape)).Msg("model input")
	}
	for _, out := range outs {
		m.log.Info().Str("name", out.Name).Str("shape", FormatShape(out.Shape)).Msg("model output")
	}
	return nil
}

// Reload re-runs Load with the stored path and the current thread policy.
// Used after a thread-policy change; a failure leaves the existing session
// serving.
func (m *Model) Reload() error {
	if m.path == "" {
		return loadError{path: "(none)", err: errors.New("no model loaded")}
	}
	return m.Load(m.path)
}

// FetchAndLoad retrieves the artifact for remotePath at timestamp into dest
// via f, updates the validity window from the store's headers, and loads the
// downloaded file. A fetch failure leaves the Model completely untouched.
func (m *Model) FetchAndLoad(ctx context.Context, f Fetcher, remotePath string, timestamp int64, dest string) error {
	h, err := m.fetch(ctx, f, remotePath, timestamp, dest)
	if err != nil {
		return err
	}
	m.validFrom = validityBound(h, headerValidFrom, m.validFrom, m.log)
	m.validUntil = validityBound(h, headerValidUntil, m.validUntil, m.log)
	return m.Load(dest)
}

// Download retrieves the artifact into dest without loading it and without
// touching the Model's state. The store's validity headers are logged.
func (m *Model) Download(ctx context.Context, f Fetcher, remotePath string, timestamp int64, dest string) error {
	h, err := m.fetch(ctx, f, remotePath, timestamp, dest)
	if err != nil {
		return err
	}
	m.log.Info().
		Str("path", remotePath).
		Str("valid_from", h.Get(headerValidFrom)).
		Str("valid_until", h.Get(headerValidUntil)).
		Msg("artifact downloaded")
	return nil
}

func (m *Model) fetch(ctx context.Context, f Fetcher, remotePath string, timestamp int64, dest string) (http.Header, error) {
	if err := f.Fetch(ctx, remotePath, timestamp, dest); err != nil {
		return nil, err
	}
	return f.Headers(ctx, remotePath, timestamp)
}

// validityBound parses one validity header. A missing header logs a note and
// keeps the previous bound; so does a value that does not parse as a
// base-agnostic unsigned integer.
func validityBound(h http.Header, key string, prev int64, log zerolog.Logger) int64 {
	v := h.Get(key)
	if v == "" {
		log.Info().Str("header", key).Msg("store response carries no validity header")
		return prev
	}
	n, err := strconv.ParseUint(v, 0, 63)
	if err != nil {
		log.Warn().Str("header", key).Str("value", v).Msg("unparseable validity header")
		return prev
	}
	return int64(n)
}

// Evaluate submits the given named tensors and returns the first declared
// output. Runtime execution failures surface as an evaluation error carrying
// the runtime's diagnostic; the returned tensor's data is owned by the
// caller.
func (m *Model) Evaluate(inputs []Tensor) (Tensor, error) {
	if m.sess == nil {
		return Tensor{}, evalError{model: m.path, err: errors.New("no session loaded")}
	}
	for _, in := range inputs {
		if n := in.NumElements(); n >= 0 && n != int64(len(in.Data)) {
			return Tensor{}, shapeError{msg: "input " + in.Name + ": shape " + FormatShape(in.Shape) +
				" wants " + strconv.FormatInt(n, 10) + " values, got " + strconv.Itoa(len(in.Data))}
		}
	}
	outs, err := m.sess.Run(inputs)
	if err != nil {
		return Tensor{}, evalError{model: m.path, err: err}
	}
	if len(outs) == 0 {
		return Tensor{}, evalError{model: m.path, err: errors.New("runtime returned no outputs")}
	}
	return outs[0], nil
}

// EvaluateFlat shapes a flat row-major buffer into a (rows, width) tensor
// named after the first declared input, where width is the model's per-row
// input width, and evaluates it. A buffer length that is not a multiple of
// the width is a shape error, never a silent truncation.
func (m *Model) EvaluateFlat(values []float32) (Tensor, error) {
	w := m.InputWidth()
	if w <= 0 {
		return Tensor{}, shapeError{msg: "model declares no per-row input width"}
	}
	if int64(len(values))%w != 0 {
		return Tensor{}, shapeError{msg: strconv.Itoa(len(values)) +
			" values do not divide into rows of width " + strconv.FormatInt(w, 10)}
	}
	rows := int64(len(values)) / w
	in := Tensor{Name: m.inputs[0].Name, Shape: []int64{rows, w}, Data: values}
	return m.Evaluate([]Tensor{in})
}

// Close releases the session. The Model can be loaded again afterwards.
func (m *Model) Close() error {
	if m.sess == nil {
		return nil
	}
	err := m.sess.Close()
	m.sess = nil
	return err
}

func copyInfos(in []TensorInfo) []TensorInfo {
	out := make([]TensorInfo, len(in))
	for i, ti := range in {
		out[i] = TensorInfo{Name: ti.Name, Shape: append([]int64(nil), ti.Shape...)}
	}
	return out
}
