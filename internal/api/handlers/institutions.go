package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/api/middleware"
	"github.com/drfirst/go-clinidoc/internal/institution"
)

// InstitutionHandler serves the doctor's letterheads.
type InstitutionHandler struct {
	institutions *institution.Repository
	logger       *zap.Logger
}

func NewInstitutionHandler(repo *institution.Repository, logger *zap.Logger) *InstitutionHandler {
	return &InstitutionHandler{institutions: repo, logger: nopIfNil(logger)}
}

// Routes returns the handler routes
func (h *InstitutionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Save)
	r.Put("/{id}", h.Save)
	r.Delete("/{id}", h.Delete)
	return r
}

func (h *InstitutionHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess.IsGuest() {
		writeJSON(w, http.StatusOK, []institution.Institution{})
		return
	}
	list, err := h.institutions.List(r.Context(), sess.DoctorID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if list == nil {
		list = []institution.Institution{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Save handles POST / and PUT /{id}. The path id wins over the body's.
func (h *InstitutionHandler) Save(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess.IsGuest() {
		jsonError(w, "guests cannot save institutions", http.StatusForbidden)
		return
	}

	var inst institution.Institution
	if !decode(w, r, &inst) {
		return
	}
	code := http.StatusCreated
	if id := chi.URLParam(r, "id"); id != "" {
		inst.ID = id
		code = http.StatusOK
	}

	saved, err := h.institutions.Save(r.Context(), sess.DoctorID, inst)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, code, saved)
}

func (h *InstitutionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess.IsGuest() {
		jsonError(w, "institution not found", http.StatusNotFound)
		return
	}
	if err := h.institutions.Delete(r.Context(), sess.DoctorID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InstitutionHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, institution.ErrNotFound):
		jsonError(w, "institution not found", http.StatusNotFound)
	case errors.Is(err, institution.ErrNameRequired):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("institution operation failed", zap.Error(err))
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}
