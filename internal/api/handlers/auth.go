package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/api/middleware"
	"github.com/drfirst/go-clinidoc/internal/auth"
	"github.com/drfirst/go-clinidoc/internal/storage"
)

// AuthHandler serves registration, login and guest sessions.
type AuthHandler struct {
	auth   *auth.Service
	logger *zap.Logger
}

func NewAuthHandler(svc *auth.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, logger: nopIfNil(logger)}
}

// Routes returns the public routes. Me is mounted behind authentication
// by the router.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/guest", h.Guest)
	return r
}

// SessionResponse carries an issued token.
type SessionResponse struct {
	auth.Result
	Token   string        `json:"token,omitempty"`
	Session *auth.Session `json:"session,omitempty"`
}

// Register handles POST /auth/register. Rejected forms answer 400 with the
// result message.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	res, doc, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.logger.Error("register failed", zap.Error(err))
		jsonError(w, "registration failed", http.StatusInternalServerError)
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}

	sess := doc.Session()
	writeJSON(w, http.StatusCreated, SessionResponse{Result: res, Session: &sess})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	res, token, sess, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Error("login failed", zap.Error(err))
		jsonError(w, "login failed", http.StatusInternalServerError)
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusUnauthorized, res)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Result: res, Token: token, Session: sess})
}

// Guest handles POST /auth/guest
func (h *AuthHandler) Guest(w http.ResponseWriter, r *http.Request) {
	token, sess, err := h.auth.Guest()
	if err != nil {
		h.logger.Error("guest session failed", zap.Error(err))
		jsonError(w, "failed to start guest session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Result: auth.Result{Success: true}, Token: token, Session: sess})
}

// Me handles GET /me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess.IsGuest() {
		writeJSON(w, http.StatusOK, map[string]any{"session": sess})
		return
	}

	doc, err := h.auth.Profile(r.Context(), sess)
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(w, "account not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("profile lookup failed", zap.Error(err))
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": sess,
		"doctor": map[string]string{
			"id":        doc.ID,
			"name":      doc.Name,
			"email":     doc.Email,
			"license":   doc.License,
			"specialty": doc.Specialty,
		},
	})
}
