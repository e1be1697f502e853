package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// TokenConfig configures session tokens.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	License string `json:"license,omitempty"`
	Guest   bool   `json:"guest,omitempty"`
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenIssuer creates an issuer.
func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &TokenIssuer{cfg: cfg, now: time.Now}
}

// Issue signs a token for s and returns it with the session's expiry set.
func (t *TokenIssuer) Issue(s Session) (string, Session, error) {
	now := t.now()
	s.ExpiresAt = now.Add(t.cfg.TTL)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    t.cfg.Issuer,
			Subject:   s.DoctorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
			NotBefore: jwt.NewNumericDate(now.Add(-10 * time.Second)),
		},
		Name:    s.Name,
		Email:   s.Email,
		License: s.License,
		Guest:   s.Guest,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.cfg.Secret))
	if err != nil {
		return "", Session{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, s, nil
}

// Parse verifies a token and returns its session.
func (t *TokenIssuer) Parse(token string) (Session, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(t.cfg.Secret), nil
		},
		jwt.WithIssuer(t.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, ErrTokenExpired
		}
		return Session{}, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return Session{}, ErrTokenInvalid
	}

	return Session{
		DoctorID:  claims.Subject,
		Name:      claims.Name,
		Email:     claims.Email,
		License:   claims.License,
		Guest:     claims.Guest,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
