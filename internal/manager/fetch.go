package manager

import (
	"context"
	"path/filepath"
	"time"

	"onnxd/internal/artifact"
	"onnxd/internal/common/fsutil"
	"onnxd/internal/onnx"
	"onnxd/pkg/types"
)

// FetchModel retrieves a remote artifact into the models dir, registers it
// under id, and loads (or reloads) its instance. When the journal holds a
// still-valid local file for the requested timestamp, the download is
// skipped and the journaled file is loaded instead. A fetch failure leaves
// any existing instance serving untouched.
func (m *Manager) FetchModel(ctx context.Context, id string, req types.FetchRequest) (types.FetchResponse, error) {
	if m.fetcher == nil {
		return types.FetchResponse{}, artifact.ErrNoClient
	}
	dest := filepath.Join(m.modelsDir, id)
	resp := types.FetchResponse{
		ID:         id,
		RemotePath: req.RemotePath,
		Timestamp:  req.Timestamp,
		ValidFrom:  onnx.ValidityUnset,
		ValidUntil: onnx.ValidityUnset,
	}
	m.publisher.Publish(Event{Name: "fetch_start", ModelID: id, Fields: map[string]any{
		"remote_path": req.RemotePath, "timestamp": req.Timestamp,
	}})

	inst, err := m.instanceFor(id)
	if err != nil {
		return resp, err
	}
	// Hold the single in-flight slot so the fetch's load never races an
	// evaluation on the same session.
	release, err := m.acquireSlot(ctx, inst)
	if err != nil {
		return resp, err
	}
	defer release()

	// Journal hit: reuse the local file whose validity window covers the
	// requested timestamp. A journaled file that has since been removed
	// falls through to a fresh download.
	if m.journal != nil {
		if e, ok, jerr := m.journal.Lookup(ctx, req.RemotePath, req.Timestamp); jerr != nil {
			m.log.Warn().Err(jerr).Msg("fetch journal lookup failed")
		} else if ok && fsutil.PathExists(e.LocalFile) {
			if err := inst.Model.Load(e.LocalFile); err != nil {
				m.recordFetchError(id, inst, err)
				return resp, err
			}
			inst.Model.SetValidity(e.ValidFrom, e.ValidUntil)
			m.commitFetched(id, inst, e.LocalFile, req.RemotePath)
			resp.ValidFrom = e.ValidFrom
			resp.ValidUntil = e.ValidUntil
			resp.Cached = true
			m.countFetch()
			m.publisher.Publish(Event{Name: "fetch_cached", ModelID: id, Fields: map[string]any{
				"local_file": e.LocalFile,
			}})
			return resp, nil
		}
	}

	if err := fsutil.EnsureDir(m.modelsDir); err != nil {
		m.recordFetchError(id, inst, err)
		return resp, err
	}
	if err := inst.Model.FetchAndLoad(ctx, m.fetcher, req.RemotePath, req.Timestamp, dest); err != nil {
		m.recordFetchError(id, inst, err)
		return resp, err
	}
	m.commitFetched(id, inst, dest, req.RemotePath)
	resp.ValidFrom = inst.Model.ValidityFrom()
	resp.ValidUntil = inst.Model.ValidityUntil()
	m.countFetch()

	if m.journal != nil {
		err := m.journal.Record(ctx, artifact.Entry{
			RemotePath: req.RemotePath,
			Timestamp:  req.Timestamp,
			ValidFrom:  resp.ValidFrom,
			ValidUntil: resp.ValidUntil,
			LocalFile:  dest,
			FetchedAt:  time.Now(),
		})
		if err != nil {
			m.log.Warn().Err(err).Msg("fetch journal record failed")
		}
	}
	m.publisher.Publish(Event{Name: "fetch_done", ModelID: id, Fields: map[string]any{
		"valid_from": resp.ValidFrom, "valid_until": resp.ValidUntil,
	}})
	return resp, nil
}

// acquireSlot takes the instance's single in-flight slot, waiting at most
// maxWait. The returned release func must be deferred.
func (m *Manager) acquireSlot(ctx context.Context, inst *Instance) (func(), error) {
	select {
	case inst.genCh <- struct{}{}:
		return func() { <-inst.genCh }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(m.maxWait):
		return nil, tooBusyError{modelID: inst.ID}
	}
}

// instanceFor returns the instance for id, creating an unloaded one if
// needed. A draining instance is busy: its unload owns the teardown and no
// new load may re-open it. The caller commits or records an error
// afterwards.
func (m *Manager) instanceFor(id string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst := m.instances[id]
	if inst == nil {
		model := onnx.New(m.runtime)
		model.SetLogger(m.log.With().Str("model", id).Logger())
		model.SetThreads(m.threads)
		inst = &Instance{
			ID:       id,
			State:    StateLoading,
			LastUsed: time.Now(),
			genCh:    make(chan struct{}, 1),
			queueCh:  make(chan struct{}, m.maxQueueDepth),
			Model:    model,
		}
		m.instances[id] = inst
	} else if inst.State == StateDraining {
		return nil, tooBusyError{modelID: id}
	} else {
		inst.State = StateLoading
	}
	return inst, nil
}

func (m *Manager) commitFetched(id string, inst *Instance, path, remotePath string) {
	mdl := types.Model{ID: id, Name: id, Path: path}
	mdl.SizeMB = m.estimateMemMB(mdl)
	m.registerModel(mdl)
	m.mu.Lock()
	inst.State = StateReady
	inst.Err = ""
	inst.RemotePath = remotePath
	inst.EstMemMB = mdl.SizeMB
	inst.LastUsed = time.Now()
	if !inst.charged {
		m.usedEstMB += inst.EstMemMB
		inst.charged = true
	}
	m.loadsTotal++
	m.mu.Unlock()
}

func (m *Manager) recordFetchError(id string, inst *Instance, err error) {
	m.mu.Lock()
	// A fetch or load failure on a previously ready instance leaves its
	// session serving; only the error field reflects the failed attempt.
	if inst.Model.Loaded() {
		inst.State = StateReady
	} else {
		inst.State = StateError
	}
	inst.Err = err.Error()
	m.mu.Unlock()
	m.publisher.Publish(Event{Name: "fetch_error", ModelID: id, Fields: map[string]any{"error": err.Error()}})
}

func (m *Manager) countFetch() {
	m.mu.Lock()
	m.fetchesTotal++
	m.mu.Unlock()
}
