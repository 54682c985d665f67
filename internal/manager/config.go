package manager

import (
	"time"

	"github.com/rs/zerolog"

	"onnxd/internal/artifact"
	"onnxd/internal/onnx"
	"onnxd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 5 * time.Second
)

// ThreadsAuto selects the host's physical core count as the thread policy.
const ThreadsAuto = -1

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Registry      []types.Model
	ModelsDir     string
	BudgetMB      int
	MarginMB      int
	DefaultModel  string
	MaxQueueDepth int
	MaxWait       time.Duration
	DrainTimeout  time.Duration
	// Threads is the intra-op thread policy applied at load time:
	// 0 = runtime default, ThreadsAuto = physical cores, N>0 = exactly N.
	Threads int
	// Runtime opens inference sessions. Defaults to onnx.NewRuntime().
	Runtime onnx.Runtime
	// Fetcher and Journal back the artifact fetch path. Both optional:
	// without a Fetcher, FetchModel fails; without a Journal, every fetch
	// downloads.
	Fetcher *artifact.Client
	Journal *artifact.Journal
	// Publisher receives lifecycle events. Defaults to a no-op.
	Publisher EventPublisher
	Logger    zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:        StateReady,
		registry:     cfg.Registry,
		modelsDir:    cfg.ModelsDir,
		budgetMB:     cfg.BudgetMB,
		marginMB:     cfg.MarginMB,
		defaultModel: cfg.DefaultModel,
		instances:    make(map[string]*Instance),
		runtime:      cfg.Runtime,
		fetcher:      cfg.Fetcher,
		journal:      cfg.Journal,
		publisher:    cfg.Publisher,
		log:          cfg.Logger,
	}
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}
	m.threads = resolveThreads(cfg.Threads, m.log)
	if m.runtime == nil {
		m.runtime = onnx.NewRuntime()
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	m.startTime = time.Now()
	return m
}

// resolveThreads maps the configured thread mode to a concrete policy value.
// The constrained-job check itself stays inside onnx.Model so it applies on
// every load, not just at construction.
func resolveThreads(n int, log zerolog.Logger) int {
	if n == ThreadsAuto {
		cores := onnx.HostCores()
		if cores <= 0 {
			log.Warn().Msg("host core probe failed, using runtime default threads")
			return 0
		}
		log.Info().Int("cores", cores).Msg("thread policy: auto")
		return cores
	}
	if n < 0 {
		return 0
	}
	return n
}
