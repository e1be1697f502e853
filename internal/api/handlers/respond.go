// Package handlers provides HTTP handlers for the documentation API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/observability/metrics"
)

// maxBodyBytes bounds request bodies; a prescription with notes is a few KB.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	encodeBody(w, v)
}

func encodeBody(w io.Writer, v any) {
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, io.EOF):
			jsonError(w, "request body is required", http.StatusBadRequest)
		default:
			jsonError(w, "invalid request body", http.StatusBadRequest)
		}
		return false
	}
	return true
}

// observe runs fn when metrics are configured.
func observe(m *metrics.Metrics, fn func(*metrics.Metrics)) {
	if m != nil {
		fn(m)
	}
}

func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
