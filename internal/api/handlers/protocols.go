package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/api/middleware"
	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/internal/protocol"
)

// ProtocolHandler serves the protocol catalog.
type ProtocolHandler struct {
	protocols *protocol.Service
	logger    *zap.Logger
}

func NewProtocolHandler(svc *protocol.Service, logger *zap.Logger) *ProtocolHandler {
	return &ProtocolHandler{protocols: svc, logger: nopIfNil(logger)}
}

// Routes returns the handler routes
func (h *ProtocolHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Save)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/favorite", h.ToggleFavorite)
	r.Post("/{id}/apply", h.Apply)
	return r
}

func (h *ProtocolHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.protocols.List(r.Context(), middleware.GetSession(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ProtocolHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.protocols.Get(r.Context(), middleware.GetSession(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProtocolHandler) Save(w http.ResponseWriter, r *http.Request) {
	var p protocol.Protocol
	if !decode(w, r, &p) {
		return
	}
	saved, err := h.protocols.Save(r.Context(), middleware.GetSession(r.Context()), p)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *ProtocolHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.protocols.Delete(r.Context(), middleware.GetSession(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProtocolHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	fav, err := h.protocols.ToggleFavorite(r.Context(), middleware.GetSession(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": fav})
}

// Apply handles POST /protocols/{id}/apply. The body is the current
// prescription; the response is the prescription with the protocol applied.
func (h *ProtocolHandler) Apply(w http.ResponseWriter, r *http.Request) {
	p, err := h.protocols.Get(r.Context(), middleware.GetSession(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}

	var state prescription.State
	if !decode(w, r, &state) {
		return
	}
	protocol.Apply(&state, p)
	writeJSON(w, http.StatusOK, &state)
}

func (h *ProtocolHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, protocol.ErrNotFound):
		jsonError(w, "protocol not found", http.StatusNotFound)
	case errors.Is(err, protocol.ErrBuiltin), errors.Is(err, protocol.ErrGuest):
		jsonError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, protocol.ErrInvalid):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("protocol operation failed", zap.Error(err))
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}
