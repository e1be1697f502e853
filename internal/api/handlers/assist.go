package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/assist"
	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/pkg/circuitbreaker"
)

// AssistHandler exposes the optional assist backend.
type AssistHandler struct {
	assistant assist.Assistant
	logger    *zap.Logger
}

// NewAssistHandler creates the handler. A nil assistant behaves as disabled.
func NewAssistHandler(a assist.Assistant, logger *zap.Logger) *AssistHandler {
	if a == nil {
		a = assist.Disabled{}
	}
	return &AssistHandler{assistant: a, logger: nopIfNil(logger)}
}

// Routes returns the handler routes
func (h *AssistHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/suggestions", h.Suggest)
	r.Post("/interactions", h.Interactions)
	return r
}

func (h *AssistHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req assist.SuggestRequest
	if !decode(w, r, &req) {
		return
	}
	meds, err := h.assistant.SuggestMedications(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	if meds == nil {
		meds = []prescription.Medication{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"medications": meds})
}

type interactionsRequest struct {
	Medications []prescription.Medication `json:"medications"`
}

func (h *AssistHandler) Interactions(w http.ResponseWriter, r *http.Request) {
	var req interactionsRequest
	if !decode(w, r, &req) {
		return
	}
	found, err := h.assistant.CheckInteractions(r.Context(), req.Medications)
	if err != nil {
		h.fail(w, err)
		return
	}
	if found == nil {
		found = []assist.Interaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"interactions": found})
}

func (h *AssistHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assist.ErrDisabled):
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, circuitbreaker.ErrOpen):
		w.Header().Set("Retry-After", "30")
		jsonError(w, "assist service unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Warn("assist request failed", zap.Error(err))
		jsonError(w, "assist request failed", http.StatusBadGateway)
	}
}
