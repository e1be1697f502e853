package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/api/middleware"
	"github.com/drfirst/go-clinidoc/internal/certificate"
	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/internal/fhir/mapper"
	"github.com/drfirst/go-clinidoc/internal/fhir/r5"
	"github.com/drfirst/go-clinidoc/internal/institution"
	"github.com/drfirst/go-clinidoc/internal/layout"
	"github.com/drfirst/go-clinidoc/internal/note"
	"github.com/drfirst/go-clinidoc/internal/observability/metrics"
	"github.com/drfirst/go-clinidoc/internal/score"
)

// DocumentHandler serves the stateless document builders: print layout,
// clinical notes, scores, certificates, validation and FHIR export.
type DocumentHandler struct {
	institutions *institution.Repository
	composer     *note.Composer
	mapper       *mapper.Mapper
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewDocumentHandler creates the handler. institutions may be nil, in which
// case FHIR exports carry no organization.
func NewDocumentHandler(institutions *institution.Repository, m *metrics.Metrics, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		institutions: institutions,
		composer:     note.NewComposer(),
		mapper:       mapper.New(),
		metrics:      m,
		logger:       nopIfNil(logger),
	}
}

// Routes returns the handler routes
func (h *DocumentHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/layout/print-job", h.PrintJob)
	r.Post("/layout/text", h.PaginateText)
	r.Post("/notes/compose", h.ComposeNote)
	r.Get("/scores", h.ListScores)
	r.Post("/scores/{id}", h.CalculateScore)
	r.Post("/certificates", h.Certificate)
	r.Post("/prescriptions/validate", h.Validate)
	r.Post("/prescriptions/fhir", h.ExportFHIR)
	return r
}

// PrintJobRequest is the body of POST /layout/print-job
type PrintJobRequest struct {
	State   *prescription.State `json:"state"`
	Options layout.JobOptions   `json:"options"`
}

// PrintJob handles POST /layout/print-job
func (h *DocumentHandler) PrintJob(w http.ResponseWriter, r *http.Request) {
	_, span := otel.Tracer("document-handler").Start(r.Context(), "build_print_job")
	defer span.End()

	var req PrintJobRequest
	if !decode(w, r, &req) {
		return
	}
	if req.State == nil {
		jsonError(w, "state is required", http.StatusBadRequest)
		return
	}
	if err := req.Options.Validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := layout.BuildPrintJob(req.State, req.Options)
	span.SetAttributes(
		attribute.Int("copies", job.Copies),
		attribute.Int("sheets", len(job.Sheets)))
	observe(h.metrics, func(m *metrics.Metrics) {
		m.PrintJobsBuilt.Inc()
		m.PrintJobPages.Observe(float64(len(job.Sheets)))
	})

	writeJSON(w, http.StatusOK, job)
}

// TextRequest is the body of POST /layout/text
type TextRequest struct {
	Text   string            `json:"text"`
	Config layout.TextConfig `json:"config"`
}

// PaginateText handles POST /layout/text
func (h *DocumentHandler) PaginateText(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Config.Validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	pages := layout.PaginateText(req.Text, req.Config)
	if pages == nil {
		pages = []layout.TextPage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
}

// ComposeNote handles POST /notes/compose. The body is the full note state;
// a missing author defaults to the session's doctor.
func (h *DocumentHandler) ComposeNote(w http.ResponseWriter, r *http.Request) {
	var state note.SoapState
	if !decode(w, r, &state) {
		return
	}
	if state.Mode == "" {
		state.Mode = note.ModeStandard
	}
	if state.Mode != note.ModeStandard && state.Mode != note.ModeTrauma {
		jsonError(w, "mode must be standard or trauma", http.StatusBadRequest)
		return
	}

	sess := middleware.GetSession(r.Context())
	if state.Author.Name == "" && !sess.IsGuest() {
		state.Author = note.Author{Name: sess.Name, Role: note.RoleAttending, License: sess.License}
	}

	text := h.composer.Compose(&state)
	observe(h.metrics, func(m *metrics.Metrics) {
		m.NotesComposed.WithLabelValues(string(state.Mode)).Inc()
	})

	writeJSON(w, http.StatusOK, map[string]string{"mode": string(state.Mode), "text": text})
}

// ListScores handles GET /scores
func (h *DocumentHandler) ListScores(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, score.List())
}

// CalculateScore handles POST /scores/{id}
func (h *DocumentHandler) CalculateScore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !score.Known(id) {
		jsonError(w, "unknown calculator: "+id, http.StatusNotFound)
		return
	}

	var in score.Input
	if !decode(w, r, &in) {
		return
	}

	result := score.Calculate(id, in)
	observe(h.metrics, func(m *metrics.Metrics) {
		m.ScoresCalculated.WithLabelValues(id).Inc()
	})
	writeJSON(w, http.StatusOK, result)
}

// Certificate handles POST /certificates. The body is the prescription
// state; the session's doctor signs the document.
func (h *DocumentHandler) Certificate(w http.ResponseWriter, r *http.Request) {
	var state prescription.State
	if !decode(w, r, &state) {
		return
	}

	sess := middleware.GetSession(r.Context())
	var issuer certificate.Issuer
	if !sess.IsGuest() {
		issuer = certificate.Issuer{Name: sess.Name, License: sess.License}
	}

	doc, err := certificate.Render(&state, issuer)
	if errors.Is(err, certificate.ErrNoDocument) {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		h.logger.Error("certificate render failed", zap.Error(err))
		jsonError(w, "failed to render certificate", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"document": doc, "text": doc.Text()})
}

// Validate handles POST /prescriptions/validate
func (h *DocumentHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var state prescription.State
	if !decode(w, r, &state) {
		return
	}
	warnings := prescription.Validate(&state)
	if warnings == nil {
		warnings = []prescription.Warning{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"warnings": warnings})
}

// FHIRRequest is the body of POST /prescriptions/fhir
type FHIRRequest struct {
	State         *prescription.State `json:"state"`
	InstitutionID string              `json:"institutionId,omitempty"`
}

// ExportFHIR handles POST /prescriptions/fhir
func (h *DocumentHandler) ExportFHIR(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("document-handler").Start(r.Context(), "export_fhir")
	defer span.End()

	var req FHIRRequest
	if !decode(w, r, &req) {
		return
	}

	sess := middleware.GetSession(ctx)
	in := mapper.Input{State: req.State, Now: time.Now()}
	if !sess.IsGuest() {
		in.Prescriber = mapper.Prescriber{ID: sess.DoctorID, Name: sess.Name, License: sess.License}
		facility, err := h.facility(r, sess.DoctorID, req.InstitutionID)
		if err != nil {
			writeOutcome(w, http.StatusNotFound, "not-found", err.Error())
			return
		}
		in.Facility = facility
	}

	bundle, err := h.mapper.ToBundle(in)
	if err != nil {
		writeOutcome(w, http.StatusUnprocessableEntity, "invalid", err.Error())
		return
	}
	span.SetAttributes(attribute.Int("entries", len(bundle.Entry)))

	w.Header().Set("Content-Type", "application/fhir+json")
	w.WriteHeader(http.StatusOK)
	encodeBody(w, bundle)
}

// facility resolves the requested institution, falling back to the
// doctor's default one.
func (h *DocumentHandler) facility(r *http.Request, doctorID, id string) (mapper.Facility, error) {
	if h.institutions == nil {
		return mapper.Facility{}, nil
	}
	list, err := h.institutions.List(r.Context(), doctorID)
	if err != nil {
		return mapper.Facility{}, err
	}
	for _, inst := range list {
		if (id != "" && inst.ID == id) || (id == "" && inst.Default) {
			return mapper.Facility{Name: inst.Name, Address: inst.Address, Phone: inst.Phone, CNES: inst.CNES}, nil
		}
	}
	if strings.TrimSpace(id) != "" {
		return mapper.Facility{}, institution.ErrNotFound
	}
	return mapper.Facility{}, nil
}

func writeOutcome(w http.ResponseWriter, code int, issue, diagnostics string) {
	w.Header().Set("Content-Type", "application/fhir+json")
	w.WriteHeader(code)
	encodeBody(w, r5.NewErrorOutcome(issue, diagnostics))
}
