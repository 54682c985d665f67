package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"onnxd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	ModelDetail(id string) (types.ModelDetail, error)
	Status() types.StatusResponse
	Evaluate(ctx context.Context, req types.EvalRequest) (types.EvalResponse, error)
	FetchModel(ctx context.Context, id string, req types.FetchRequest) (types.FetchResponse, error)
	Reload(ctx context.Context, modelID string) error
	Unload(modelID string) error
	Ready() bool
}

// NewMux builds the API router over svc.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints.
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	r.Use(requestLogMiddleware)
	// Security headers.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(authMiddleware)

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.ModelsResponse{Models: svc.ListModels()})
	})

	r.Get("/models/{id}", func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.ModelDetail(chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, d)
	})

	r.Post("/eval", func(w http.ResponseWriter, r *http.Request) {
		var req types.EvalRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if len(req.Values) == 0 && len(req.Inputs) == 0 {
			writeJSONError(w, http.StatusBadRequest, "values or inputs is required")
			return
		}
		if len(req.Values) > 0 && len(req.Inputs) > 0 {
			writeJSONError(w, http.StatusBadRequest, "values and inputs are mutually exclusive")
			return
		}
		// Join server base context with request context so shutdown cancels
		// work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		start := time.Now()
		resp, err := svc.Evaluate(ctx, req)
		if err != nil {
			observeEval(req.Model, "error", time.Since(start), 0)
			writeServiceError(w, err)
			return
		}
		observeEval(resp.Model, "ok", time.Since(start), resp.Rows)
		writeJSON(w, resp)
	})

	r.Post("/models/{id}/fetch", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req types.FetchRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.RemotePath) == "" {
			writeJSONError(w, http.StatusBadRequest, "remote_path is required")
			return
		}
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		resp, err := svc.FetchModel(ctx, id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		IncrementFetches()
		writeJSON(w, resp)
	})

	r.Post("/models/{id}/reload", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if err := svc.Reload(ctx, chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "reloaded"})
	})

	r.Post("/models/{id}/unload", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Unload(chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "unloaded"})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint.
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// decodeJSONBody enforces content type and body size before decoding into
// dst. Writes the error response itself and returns false on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		// An exceeded MaxBytesReader also lands here; 400 avoids leaking
		// size details.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
