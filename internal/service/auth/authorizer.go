package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// SessionCookieName is the cookie carrying the session token for
// browser clients. API clients use the Authorization header instead.
const SessionCookieName = "token"

// DecisionKind classifies the outcome of authorizing a request.
type DecisionKind int

const (
	// DecisionDenied means no acceptable credential was presented.
	DecisionDenied DecisionKind = iota

	// DecisionIdentity means a valid session token identified a user.
	DecisionIdentity

	// DecisionBypass means the pre-shared automation key was presented.
	// It carries no user identity; only routes that opt in honor it.
	DecisionBypass
)

// Decision is the tagged result of authorizing a request.
// For DecisionIdentity, UserID holds the authenticated user.
// For DecisionDenied, Err holds the reason (ErrMissingToken,
// ErrInvalidToken, ErrExpiredToken, ...).
type Decision struct {
	Kind   DecisionKind
	UserID uuid.UUID
	Err    error
}

// Authorizer turns an incoming request's credential into a Decision.
// It is the single place the bypass key is compared and the single
// place the credential source precedence (header, then cookie) lives.
type Authorizer struct {
	jwtService JWTService
	apiKey     string
}

// NewAuthorizer creates an Authorizer. An empty apiKey disables the
// automation bypass entirely.
func NewAuthorizer(jwtService JWTService, apiKey string) *Authorizer {
	return &Authorizer{
		jwtService: jwtService,
		apiKey:     apiKey,
	}
}

// Decide extracts the bearer credential from the request and classifies
// it. The credential is read from the Authorization header first, then
// from the session cookie. A credential exactly matching the configured
// API key yields DecisionBypass; otherwise it is validated as a session
// token.
func (a *Authorizer) Decide(r *http.Request) Decision {
	token, ok := bearerFromRequest(r)
	if !ok {
		return Decision{Kind: DecisionDenied, Err: ErrMissingToken}
	}

	if a.apiKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.apiKey)) == 1 {
		return Decision{Kind: DecisionBypass}
	}

	claims, err := a.jwtService.ValidateToken(r.Context(), token)
	if err != nil {
		return Decision{Kind: DecisionDenied, Err: err}
	}

	return Decision{Kind: DecisionIdentity, UserID: claims.UserID}
}

// bearerFromRequest extracts the bearer credential from the request,
// preferring the Authorization header over the session cookie.
func bearerFromRequest(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] != "" {
			return parts[1], true
		}
		return "", false
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
