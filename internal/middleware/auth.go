// Package middleware contains HTTP middleware for the Checkship API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/Arthur094/checkship/internal/auth"
	"github.com/Arthur094/checkship/internal/domain"
)

// UserIDHeader carries the caller identity asserted by the fleet gateway.
// The gateway terminates authentication; this service only resolves the
// header to a user profile.
const UserIDHeader = "X-User-ID"

// UserLoader resolves a user ID to a full profile.
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// =============================================================================
// Identity Middleware
// =============================================================================

// IdentityMiddleware resolves the X-User-ID header into a domain.User and
// stores it in the request context.
type IdentityMiddleware struct {
	users  UserLoader
	logger *slog.Logger
}

// NewIdentityMiddleware creates a new identity middleware.
func NewIdentityMiddleware(users UserLoader, logger *slog.Logger) *IdentityMiddleware {
	return &IdentityMiddleware{
		users:  users,
		logger: logger,
	}
}

// WithUser loads the caller's profile when the identity header is present.
// Requests without the header pass through unauthenticated; route guards
// decide whether that is acceptable.
func (m *IdentityMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserIDHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := uuid.Parse(raw)
		if err != nil {
			writeAuthError(w, http.StatusBadRequest, "invalid_user_id", "X-User-ID must be a valid UUID")
			return
		}

		user, err := m.users.GetByID(r.Context(), id)
		if err != nil {
			if domain.ErrorCode(err) == domain.ENOTFOUND {
				writeAuthError(w, http.StatusUnauthorized, "unknown_user", "no user matches the supplied identity")
				return
			}
			m.logger.Error("failed to resolve user identity",
				"user_id", id,
				"error", err,
			)
			writeAuthError(w, http.StatusServiceUnavailable, "identity_unavailable", "could not resolve caller identity")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), user)))
	})
}

// RequireUser rejects requests that did not resolve to a user.
func (m *IdentityMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil {
			writeAuthError(w, http.StatusUnauthorized, "authentication_required", "this endpoint requires an authenticated caller")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects authenticated requests whose user does not hold one of
// the given roles. Unauthenticated requests are rejected with 401.
func (m *IdentityMiddleware) RequireRole(roles ...domain.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := auth.GetUser(r.Context())
			if user == nil {
				writeAuthError(w, http.StatusUnauthorized, "authentication_required", "this endpoint requires an authenticated caller")
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			m.logger.Warn("role check failed",
				"user_id", user.ID,
				"role", user.Role,
				"path", r.URL.Path,
			)
			writeAuthError(w, http.StatusForbidden, "insufficient_role", "your role does not permit this operation")
		})
	}
}

// Stack composes middlewares so the first listed runs outermost.
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
