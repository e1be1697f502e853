package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/api/middleware"
	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/internal/observability/metrics"
	"github.com/drfirst/go-clinidoc/internal/record"
)

// RecordHandler serves the patient record archive.
type RecordHandler struct {
	records *record.Service
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(records *record.Service, m *metrics.Metrics, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{records: records, metrics: m, logger: nopIfNil(logger)}
}

// Routes returns the handler routes
func (h *RecordHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Save)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}/favorite", h.SetFavorite)
	r.Delete("/{id}", h.Delete)
	return r
}

// SaveResponse is returned by POST /records.
type SaveResponse struct {
	Created bool                  `json:"created"`
	Record  *record.PatientRecord `json:"record,omitempty"`
}

// Save handles POST /records (save and exit). A duplicate of a record saved
// within the suppression window answers 200 with created=false.
func (h *RecordHandler) Save(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("record-handler").Start(r.Context(), "save_record")
	defer span.End()

	var state prescription.State
	if !decode(w, r, &state) {
		return
	}

	ctx = record.ContextWithCorrelation(ctx, middleware.GetRequestID(ctx))
	sess := middleware.GetSession(ctx)

	rec, created, err := h.records.SaveAndExit(ctx, sess, &state)
	if errors.Is(err, prescription.ErrInvalidDate) {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("save record failed",
			zap.String("request_id", middleware.GetRequestID(ctx)),
			zap.Error(err))
		jsonError(w, "failed to save record", http.StatusInternalServerError)
		return
	}
	span.SetAttributes(attribute.Bool("created", created))

	switch {
	case created:
		observe(h.metrics, func(m *metrics.Metrics) { m.RecordsSaved.Inc() })
		writeJSON(w, http.StatusCreated, SaveResponse{Created: true, Record: rec})
	case rec != nil:
		observe(h.metrics, func(m *metrics.Metrics) { m.DuplicatesSuppressed.Inc() })
		writeJSON(w, http.StatusOK, SaveResponse{Record: rec})
	default:
		writeJSON(w, http.StatusOK, SaveResponse{})
	}
}

// List handles GET /records?q=&favorites=true
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.GetSession(ctx)

	var (
		list []*record.PatientRecord
		err  error
	)
	switch q := r.URL.Query(); {
	case q.Get("favorites") == "true":
		list, err = h.records.Favorites(ctx, sess)
	case q.Get("q") != "":
		list, err = h.records.Search(ctx, sess, q.Get("q"))
	default:
		list, err = h.records.List(ctx, sess)
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	if list == nil {
		list = []*record.PatientRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /records/{id}
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.Get(r.Context(), middleware.GetSession(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type favoriteRequest struct {
	Favorite bool `json:"favorite"`
}

// SetFavorite handles PUT /records/{id}/favorite
func (h *RecordHandler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := record.ContextWithCorrelation(r.Context(), middleware.GetRequestID(r.Context()))
	rec, err := h.records.SetFavorite(ctx, middleware.GetSession(ctx), chi.URLParam(r, "id"), req.Favorite)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /records/{id}
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := record.ContextWithCorrelation(r.Context(), middleware.GetRequestID(r.Context()))
	if err := h.records.Delete(ctx, middleware.GetSession(ctx), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecordHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, record.ErrNotFound):
		jsonError(w, "record not found", http.StatusNotFound)
	case errors.Is(err, record.ErrGuest):
		jsonError(w, err.Error(), http.StatusForbidden)
	default:
		h.logger.Error("record operation failed", zap.Error(err))
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}
