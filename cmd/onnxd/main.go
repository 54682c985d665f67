package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"onnxd/internal/artifact"
	"onnxd/internal/config"
	"onnxd/internal/httpapi"
	"onnxd/internal/manager"
	"onnxd/internal/registry"
	"onnxd/pkg/types"
)

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	// Flags with environment variable defaults
	addr := flag.String("addr", envDefault("ONNXD_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	configPath := flag.String("config", os.Getenv("ONNXD_CONFIG"), "Optional config file (.yaml/.json/.toml)")
	modelsDir := flag.String("models-dir", envDefault("ONNXD_MODELS_DIR", "~/models/onnx"), "Directory to scan for *.onnx model files")
	storeURL := flag.String("store-url", os.Getenv("ONNXD_STORE_URL"), "Artifact store base URL (empty uses the well-known endpoint)")
	threads := flag.Int("threads", 0, "Intra-op threads per session (0=runtime default, -1=host cores)")
	memBudgetMB := flag.Int("mem-budget-mb", 0, "Memory budget in MB for all loaded sessions (0=unlimited)")
	memMarginMB := flag.Int("mem-margin-mb", 0, "Reserved memory margin in MB to keep free")
	defaultModel := flag.String("default-model", "", "Default model id when request omits model")
	journalPath := flag.String("journal-path", os.Getenv("ONNXD_JOURNAL"), "Fetch journal database path (empty disables caching)")
	corsOrigins := flag.String("cors-origins", os.Getenv("ONNXD_CORS_ORIGINS"), "Comma-separated allowed CORS origins (empty disables CORS)")
	logLevel := flag.String("log-level", envDefault("ONNXD_LOG", "info"), "Process log level: debug|info|warn|error")
	flag.Parse()

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Str("service", "onnxd").Logger()

	cfg := config.Config{}
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("load config")
		}
	}
	// Explicit flags win over config file values.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["addr"] || cfg.Addr == "" {
		cfg.Addr = *addr
	}
	if set["models-dir"] || cfg.ModelsDir == "" {
		cfg.ModelsDir = *modelsDir
	}
	if set["store-url"] || cfg.StoreURL == "" {
		cfg.StoreURL = *storeURL
	}
	if set["threads"] {
		cfg.Threads = *threads
	}
	if set["mem-budget-mb"] {
		cfg.MemBudgetMB = *memBudgetMB
	}
	if set["mem-margin-mb"] {
		cfg.MemMarginMB = *memMarginMB
	}
	if set["default-model"] || cfg.DefaultModel == "" {
		cfg.DefaultModel = *defaultModel
	}
	if set["journal-path"] || cfg.JournalPath == "" {
		cfg.JournalPath = *journalPath
	}

	// Load registry by scanning the models dir for *.onnx
	reg, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.ModelsDir).Msg("scan models dir")
	}

	fetcher := artifact.NewClient(cfg.StoreURL)
	var journal *artifact.Journal
	if cfg.JournalPath != "" {
		journal, err = artifact.OpenJournal(cfg.JournalPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.JournalPath).Msg("open fetch journal")
		}
		defer journal.Close()
	}

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Registry:     reg,
		ModelsDir:    cfg.ModelsDir,
		BudgetMB:     cfg.MemBudgetMB,
		MarginMB:     cfg.MemMarginMB,
		DefaultModel: cfg.DefaultModel,
		Threads:      cfg.Threads,
		Fetcher:      fetcher,
		Journal:      journal,
		Logger:       log.With().Str("component", "manager").Logger(),
	})

	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "onnxd",
		Name:      "loaded_instances",
		Help:      "Number of model instances currently tracked by the manager.",
	}, func() float64 { return float64(mgr.InstancesCount()) }))

	// Fetch configured artifacts before serving so the first request does
	// not pay the download cost.
	if len(cfg.Artifacts) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		for _, a := range cfg.Artifacts {
			req := types.FetchRequest{RemotePath: a.RemotePath, Timestamp: a.Timestamp}
			if _, err := mgr.FetchModel(ctx, a.ID, req); err != nil {
				log.Error().Err(err).Str("id", a.ID).Str("remote_path", a.RemotePath).Msg("startup fetch failed")
			}
		}
		cancel()
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	defer baseCancel()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetAuthKeyHash(cfg.AuthKeyHash)
	if origins := splitCSV(*corsOrigins); len(origins) > 0 {
		httpapi.SetCORSOptions(true, origins,
			[]string{"GET", "POST", "OPTIONS"},
			[]string{"Accept", "Authorization", "Content-Type", "X-Log-Level"})
	}

	mux := httpapi.NewMux(mgr)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Int("models", len(reg)).Msg("onnxd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")
	baseCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
	if err := mgr.Close(); err != nil {
		log.Error().Err(err).Msg("manager close")
	}
}
