package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/api/middleware"
	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/internal/history"
)

// HistoryHandler serves the printed prescription history.
type HistoryHandler struct {
	history *history.Repository
	logger  *zap.Logger
}

func NewHistoryHandler(repo *history.Repository, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{history: repo, logger: nopIfNil(logger)}
}

// Routes returns the handler routes
func (h *HistoryHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Add)
	r.Delete("/", h.Clear)
	return r
}

// List handles GET /history?limit=
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess.IsGuest() {
		writeJSON(w, http.StatusOK, []history.Entry{})
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			jsonError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.history.List(r.Context(), sess.DoctorID, limit)
	if err != nil {
		h.logger.Error("list history failed", zap.Error(err))
		jsonError(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Add handles POST /history
func (h *HistoryHandler) Add(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess.IsGuest() {
		jsonError(w, "guests have no history", http.StatusForbidden)
		return
	}

	var state prescription.State
	if !decode(w, r, &state) {
		return
	}
	entry, err := h.history.Add(r.Context(), sess.DoctorID, &state)
	if err != nil {
		h.logger.Error("add history failed", zap.Error(err))
		jsonError(w, "failed to save history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// Clear handles DELETE /history
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess.IsGuest() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.history.Clear(r.Context(), sess.DoctorID); err != nil {
		h.logger.Error("clear history failed", zap.Error(err))
		jsonError(w, "failed to clear history", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
