package types

// EvalInput is one prepared input tensor in an EvalRequest.
type EvalInput struct {
	// Tensor name. When empty, inputs are matched to the model's declared
	// inputs by position.
	// example: features
	Name string `json:"name,omitempty" example:"features"`
	// Tensor shape. The product of all dimensions must equal len(values).
	Shape []int64 `json:"shape"`
	// Row-major tensor data.
	Values []float32 `json:"values"`
}

// EvalRequest represents an evaluation request payload. Exactly one of
// Values (flat form) or Inputs (prepared form) should be populated.
type EvalRequest struct {
	// Optional model identifier. If empty, the server default is used.
	// example: pid-bdt.onnx
	Model string `json:"model,omitempty" example:"pid-bdt.onnx"`
	// Flat row-major buffer. Rows are derived from the model's declared
	// per-row input width.
	Values []float32 `json:"values,omitempty"`
	// Prepared tensors matching the model's declared inputs.
	Inputs []EvalInput `json:"inputs,omitempty"`
}

// EvalResponse is returned by POST /eval.
type EvalResponse struct {
	// Model that served the evaluation.
	// example: pid-bdt.onnx
	Model string `json:"model" example:"pid-bdt.onnx"`
	// Number of output rows.
	// example: 3
	Rows int64 `json:"rows" example:"3"`
	// Shape of the first output tensor.
	Shape []int64 `json:"shape"`
	// Flat row-major buffer of the first output tensor.
	Values []float32 `json:"values"`
}

// FetchRequest asks the server to download a model artifact from the
// configured store and (re)load it.
type FetchRequest struct {
	// Store path of the artifact.
	// example: Analysis/PID/TPC/ML
	RemotePath string `json:"remote_path" example:"Analysis/PID/TPC/ML"`
	// Timestamp the artifact must be valid for, in store epoch units.
	// example: 1655000000000
	Timestamp int64 `json:"timestamp" example:"1655000000000"`
}

// FetchResponse is returned by POST /models/{id}/fetch.
type FetchResponse struct {
	// Canonical id the fetched model is registered under.
	// example: pid-bdt.onnx
	ID string `json:"id" example:"pid-bdt.onnx"`
	// Store path the artifact was fetched from.
	RemotePath string `json:"remote_path"`
	// Requested timestamp.
	Timestamp int64 `json:"timestamp"`
	// Start of the artifact's validity window; -1 when the store did not say.
	// example: 100
	ValidFrom int64 `json:"valid_from" example:"100"`
	// End of the artifact's validity window; -1 when the store did not say.
	// example: 200
	ValidUntil int64 `json:"valid_until" example:"200"`
	// True when a journaled local file was reused instead of downloading.
	Cached bool `json:"cached"`
}

// ModelDetail is returned by GET /models/{id}.
type ModelDetail struct {
	Model Model `json:"model"`
	// Lifecycle state of the instance serving this model, or "unloaded".
	// example: ready
	State string `json:"state" example:"ready"`
	// Declared inputs, captured at load time. Empty until first load.
	Inputs []TensorDesc `json:"inputs,omitempty"`
	// Declared outputs, captured at load time. Empty until first load.
	Outputs []TensorDesc `json:"outputs,omitempty"`
	// Per-row feature width of the first declared input (second dimension).
	// example: 4
	InputWidth int64 `json:"input_width" example:"4"`
	// Per-row feature width of the first declared output (second dimension).
	// example: 2
	OutputWidth int64 `json:"output_width" example:"2"`
	// Validity window bounds; -1 means never set by a fetch.
	ValidFrom  int64 `json:"valid_from"`
	ValidUntil int64 `json:"valid_until"`
	// Intra-op thread count the session was opened with; 0 means runtime default.
	// example: 1
	Threads int `json:"threads" example:"1"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// InstanceStatus summarizes a loaded instance for /status.
type InstanceStatus struct {
	// ID of the model this instance serves.
	// example: pid-bdt.onnx
	ModelID string `json:"model_id" example:"pid-bdt.onnx"`
	// Current lifecycle state of the instance.
	// example: ready
	State string `json:"state" example:"ready"`
	// Last time this instance served a request (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Estimated resident memory in MB.
	// example: 12
	EstMemMB int `json:"est_mem_mb" example:"12"`
	// Current queue length for incoming evaluations.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Number of in-flight evaluations.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued evaluations allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Per-row input/output widths captured at load time.
	InputWidth  int64 `json:"input_width"`
	OutputWidth int64 `json:"output_width"`
	// Validity window bounds; -1 means never set by a fetch.
	ValidFrom  int64 `json:"valid_from"`
	ValidUntil int64 `json:"valid_until"`
	// Intra-op threads the session was opened with; 0 means runtime default.
	Threads int `json:"threads"`
	// Last load or reload error observed on this instance, if any.
	Err string `json:"error,omitempty"`
}

// HostStatus reports host memory as seen by the server process.
type HostStatus struct {
	// Total physical memory in MB.
	// example: 64142
	TotalMB uint64 `json:"total_mb" example:"64142"`
	// Available physical memory in MB.
	// example: 50873
	AvailableMB uint64 `json:"available_mb" example:"50873"`
	// Used memory percentage.
	// example: 20.7
	UsedPercent float64 `json:"used_percent" example:"20.7"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Loaded/managed instances.
	Instances []InstanceStatus `json:"instances"`
	// Resident-memory budget in MB across all instances (0 = unlimited).
	// example: 8192
	BudgetMB int `json:"budget_mb" example:"8192"`
	// Estimated used memory in MB.
	// example: 24
	UsedMB int `json:"used_est_mb" example:"24"`
	// Reserved memory margin in MB.
	// example: 512
	MarginMB int `json:"margin_mb" example:"512"`
	// Host memory snapshot; zero values when the probe failed.
	Host HostStatus `json:"host"`
	// Optional top-level error message.
	Error string `json:"error,omitempty"`
	// Overall manager state (loading, ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total number of model loads and reloads.
	// example: 12
	LoadsTotal uint64 `json:"loads_total" example:"12"`
	// Total number of evictions performed to stay within the budget.
	// example: 5
	EvictionsTotal uint64 `json:"evictions_total" example:"5"`
	// Total number of artifact fetches (journal hits included).
	// example: 3
	FetchesTotal uint64 `json:"fetches_total" example:"3"`
	// True when the binary carries the real inference runtime.
	RuntimeBuilt bool `json:"runtime_built"`
	// Number of instances currently loading.
	// example: 1
	LoadingCount int `json:"loading_count" example:"1"`
	// Number of instances currently draining (unload in progress).
	// example: 0
	DrainingCount int `json:"draining_count" example:"0"`
}
