package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/drfirst/go-clinidoc/internal/auth"
)

// SessionVerifier parses bearer tokens.
type SessionVerifier interface {
	Verify(token string) (auth.Session, error)
}

// JWTAuth requires a valid session token and stores the session in the
// request context.
func JWTAuth(v SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			sess, err := v.Verify(token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, auth.ErrTokenExpired) {
					msg = "token expired"
				}
				writeError(w, http.StatusUnauthorized, msg)
				return
			}

			if c, ok := r.Context().Value(callerKey).(*caller); ok {
				c.doctorID = sess.DoctorID
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s auth.Session) context.Context {
	return context.WithValue(ctx, SessionKey, s)
}

// GetSession returns the session stored by JWTAuth. Requests without one
// are treated as guests.
func GetSession(ctx context.Context) auth.Session {
	if s, ok := ctx.Value(SessionKey).(auth.Session); ok {
		return s
	}
	return auth.GuestSession()
}
