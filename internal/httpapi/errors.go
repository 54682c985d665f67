package httpapi

import (
	"encoding/json"
	"net/http"

	"onnxd/internal/artifact"
	"onnxd/internal/manager"
	"onnxd/internal/onnx"
	"onnxd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeServiceError maps well-known service errors to HTTP status codes:
// 400 malformed input shapes, 404 unknown model, 429 backpressure,
// 502 store fetch failures, 503 runtime not built in, 500 otherwise.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case onnx.IsShapeError(err):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case manager.IsModelNotFound(err):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case manager.IsTooBusy(err):
		IncrementBackpressure("queue_full")
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
	case artifact.IsFetchError(err):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	case manager.IsRuntimeUnavailable(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		if he, ok := err.(HTTPError); ok {
			writeJSONError(w, he.StatusCode(), he.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
