package auth

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/marketplace/internal/api"
	"github.com/joao-fontenele/marketplace/internal/apperr"
	"github.com/joao-fontenele/marketplace/internal/domain"
)

type Middleware struct {
	tokens *Tokens
	logger *slog.Logger
}

func NewMiddleware(tokens *Tokens, logger *slog.Logger) *Middleware {
	return &Middleware{tokens: tokens, logger: logger}
}

// Require rejects requests without a valid token (401) and, when roles are
// given, requests whose user has none of them (403).
func (m *Middleware) Require(next http.HandlerFunc, roles ...domain.UserRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := BearerToken(r)
		if tokenStr == "" {
			api.WriteError(w, m.logger, apperr.Unauthorized("Authentication required"))
			return
		}

		user, err := m.tokens.Parse(tokenStr)
		if err != nil {
			m.logger.Debug("token rejected", "error", err)
			api.WriteError(w, m.logger, apperr.Unauthorized("Invalid or expired token"))
			return
		}

		if len(roles) > 0 && !user.HasRole(roles...) {
			m.logger.Debug("role check failed", "user_id", user.ID, "role", user.Role)
			api.WriteError(w, m.logger, apperr.Forbidden("Insufficient permissions"))
			return
		}

		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// Optional attaches the user when a valid token is present and otherwise
// lets the request through anonymously. A malformed token is still a 401.
func (m *Middleware) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := BearerToken(r)
		if tokenStr == "" {
			next(w, r)
			return
		}

		user, err := m.tokens.Parse(tokenStr)
		if err != nil {
			api.WriteError(w, m.logger, apperr.Unauthorized("Invalid or expired token"))
			return
		}

		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// MustUser returns the authenticated user; handlers behind Require may rely on it.
func MustUser(r *http.Request) (domain.AuthenticatedUser, error) {
	u, ok := UserFrom(r.Context())
	if !ok {
		return domain.AuthenticatedUser{}, apperr.Unauthorized("Authentication required")
	}
	return u, nil
}
