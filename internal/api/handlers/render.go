package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/api/middleware"
	"github.com/drfirst/go-clinidoc/internal/history"
	"github.com/drfirst/go-clinidoc/internal/layout"
	"github.com/drfirst/go-clinidoc/internal/render"
)

// RenderHandler queues prescriptions for the PDF renderer.
type RenderHandler struct {
	requester *render.Requester
	history   *history.Repository
	logger    *zap.Logger
}

// NewRenderHandler creates the handler. history may be nil.
func NewRenderHandler(requester *render.Requester, hist *history.Repository, logger *zap.Logger) *RenderHandler {
	return &RenderHandler{requester: requester, history: hist, logger: nopIfNil(logger)}
}

// Routes returns the handler routes
func (h *RenderHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Enqueue)
	return r
}

// Enqueue handles POST /render. Printing records the prescription in the
// doctor's history.
func (h *RenderHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("render-handler").Start(r.Context(), "enqueue_render")
	defer span.End()

	var req render.Request
	if !decode(w, r, &req) {
		return
	}
	if req.RequestID == "" {
		req.RequestID = middleware.GetRequestID(ctx)
	}

	sess := middleware.GetSession(ctx)
	queued, err := h.requester.Enqueue(ctx, sess, req)
	if errors.Is(err, render.ErrNilState) || errors.Is(err, layout.ErrInvalidOptions) {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("enqueue render failed",
			zap.String("request_id", req.RequestID),
			zap.Error(err))
		jsonError(w, "failed to queue render request", http.StatusServiceUnavailable)
		return
	}
	span.SetAttributes(attribute.String("render_request_id", queued.RequestID))

	if h.history != nil && !sess.IsGuest() {
		if _, err := h.history.Add(ctx, sess.DoctorID, queued.State); err != nil {
			h.logger.Warn("history append failed", zap.String("doctor_id", sess.DoctorID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"requestId": queued.RequestID, "status": "queued"})
}
