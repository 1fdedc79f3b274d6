package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
)

// AuthMiddleware authenticates requests on protected routes. The
// credential is read from the Authorization header first, then from
// the session cookie, via the shared auth.Authorizer.
type AuthMiddleware struct {
	authorizer *auth.Authorizer
}

// NewAuthMiddleware creates a new AuthMiddleware with the given authorizer.
func NewAuthMiddleware(authorizer *auth.Authorizer) *AuthMiddleware {
	return &AuthMiddleware{
		authorizer: authorizer,
	}
}

// Authenticate requires a valid session token identifying a user and
// adds the user ID to the request context. The automation bypass key
// is NOT accepted here; routes that honor it use AuthenticateAllowBypass.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := m.authorizer.Decide(r)

		switch decision.Kind {
		case auth.DecisionIdentity:
			ctx := context.WithValue(r.Context(), shared.UserIDContextKey, decision.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		case auth.DecisionBypass:
			// The pre-shared key carries no user identity, so it cannot
			// authorize owner-scoped operations.
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
		default:
			respondDenied(w, r, decision.Err)
		}
	})
}

// AuthenticateAllowBypass behaves like Authenticate but additionally
// accepts the automation bypass key, marking the request context so
// handlers skip the ownership check. Used only by the mark-failed
// endpoints.
func (m *AuthMiddleware) AuthenticateAllowBypass(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := m.authorizer.Decide(r)

		switch decision.Kind {
		case auth.DecisionIdentity:
			ctx := context.WithValue(r.Context(), shared.UserIDContextKey, decision.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		case auth.DecisionBypass:
			ctx := context.WithValue(r.Context(), shared.BypassContextKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		default:
			respondDenied(w, r, decision.Err)
		}
	})
}

// respondDenied maps an authorization failure onto a 401 envelope.
func respondDenied(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, auth.ErrExpiredToken):
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
	default:
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
	}
}
