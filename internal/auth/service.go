// Package auth is the credential store: doctor registration, password
// login, guest sessions and session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/drfirst/go-clinidoc/internal/storage"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// MaxPasswordLength is the bcrypt input limit, in bytes.
const MaxPasswordLength = 72

// Messages returned in Result.
const (
	MsgRegistered         = "Cadastro realizado com sucesso"
	MsgLoggedIn           = "Login realizado com sucesso"
	MsgMissingFields      = "Preencha todos os campos obrigatórios"
	MsgPasswordMismatch   = "As senhas não coincidem"
	MsgPasswordTooShort   = "A senha deve ter pelo menos 6 caracteres"
	MsgPasswordTooLong    = "A senha deve ter no máximo 72 bytes"
	MsgEmailTaken         = "E-mail já cadastrado"
	MsgInvalidCredentials = "E-mail ou senha inválidos"
)

// Result reports the outcome of a user-facing auth action. Rejections are
// results, not errors; errors are reserved for storage failures.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Doctor is a registered account.
type Doctor struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	License      string    `json:"license"`
	Specialty    string    `json:"specialty,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session converts the account into a session.
func (d *Doctor) Session() Session {
	return Session{DoctorID: d.ID, Name: d.Name, Email: d.Email, License: d.License}
}

// RegisterRequest is the sign-up form.
type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	License         string `json:"license"`
	Specialty       string `json:"specialty,omitempty"`
}

// Service implements the credential store.
type Service struct {
	store      storage.Store
	tokens     *TokenIssuer
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time
}

// NewService creates the credential service. A zero cost uses
// bcrypt.DefaultCost.
func NewService(store storage.Store, tokens *TokenIssuer, logger *zap.Logger, bcryptCost int) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{store: store, tokens: tokens, logger: logger, bcryptCost: bcryptCost, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Result, *Doctor, error) {
	email := normalizeEmail(req.Email)
	if strings.TrimSpace(req.Name) == "" || email == "" || req.Password == "" {
		return Result{Message: MsgMissingFields}, nil, nil
	}
	if req.Password != req.ConfirmPassword {
		return Result{Message: MsgPasswordMismatch}, nil, nil
	}
	if len(req.Password) < MinPasswordLength {
		return Result{Message: MsgPasswordTooShort}, nil, nil
	}
	if len(req.Password) > MaxPasswordLength {
		return Result{Message: MsgPasswordTooLong}, nil, nil
	}

	var existing Doctor
	err := s.store.Get(ctx, storage.KindDoctors, email, &existing)
	if err == nil {
		return Result{Message: MsgEmailTaken}, nil, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return Result{}, nil, fmt.Errorf("lookup account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return Result{}, nil, fmt.Errorf("hashing password: %w", err)
	}

	doc := &Doctor{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		License:      strings.TrimSpace(req.License),
		Specialty:    strings.TrimSpace(req.Specialty),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Put(ctx, storage.KindDoctors, email, doc); err != nil {
		return Result{}, nil, fmt.Errorf("save account: %w", err)
	}

	s.logger.Info("doctor registered", zap.String("doctor_id", doc.ID))
	return Result{Success: true, Message: MsgRegistered}, doc, nil
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (Result, string, *Session, error) {
	var doc Doctor
	err := s.store.Get(ctx, storage.KindDoctors, normalizeEmail(email), &doc)
	if errors.Is(err, storage.ErrNotFound) {
		// keep the response time independent of whether the account exists
		_, _ = bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
		return Result{Message: MsgInvalidCredentials}, "", nil, nil
	}
	if err != nil {
		return Result{}, "", nil, fmt.Errorf("lookup account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(doc.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("failed login attempt", zap.String("doctor_id", doc.ID))
		return Result{Message: MsgInvalidCredentials}, "", nil, nil
	}

	token, sess, err := s.tokens.Issue(doc.Session())
	if err != nil {
		return Result{}, "", nil, err
	}
	s.logger.Info("doctor logged in", zap.String("doctor_id", doc.ID))
	return Result{Success: true, Message: MsgLoggedIn}, token, &sess, nil
}

// Guest issues a guest session token.
func (s *Service) Guest() (string, *Session, error) {
	token, sess, err := s.tokens.Issue(GuestSession())
	if err != nil {
		return "", nil, err
	}
	return token, &sess, nil
}

// Profile returns the account behind a session.
func (s *Service) Profile(ctx context.Context, sess Session) (*Doctor, error) {
	if sess.IsGuest() {
		return nil, storage.ErrNotFound
	}
	var doc Doctor
	if err := s.store.Get(ctx, storage.KindDoctors, normalizeEmail(sess.Email), &doc); err != nil {
		return nil, err
	}
	if doc.ID != sess.DoctorID {
		return nil, storage.ErrNotFound
	}
	return &doc, nil
}

// Verify parses a bearer token.
func (s *Service) Verify(token string) (Session, error) {
	return s.tokens.Parse(token)
}
