// Package shared holds the response envelope and request context
// helpers used by every handler.
package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"

	"github.com/google/uuid"
)

// ContextKey is the key type for context values set by the API layer.
type ContextKey string

// Context keys for various values
const (
	// UserIDContextKey is the context key for the authenticated user ID.
	// Set only when the request carried a valid session token.
	UserIDContextKey ContextKey = "userID"

	// BypassContextKey is the context key marking a request authorized
	// by the automation bypass key instead of a user identity.
	BypassContextKey ContextKey = "bypass"

	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of bytes used to generate the trace ID
	TraceIDLength = 16 // 32 hex characters
)

// SetTraceID adds a trace ID to the context.
// This is useful for correlating logs and error responses.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// UserIDFromContext extracts the authenticated user ID from the context.
// Returns false if the request was not authenticated as a user.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}

// IsBypass reports whether the request was authorized by the automation
// bypass key rather than a user identity.
func IsBypass(ctx context.Context) bool {
	bypass, ok := ctx.Value(BypassContextKey).(bool)
	return ok && bypass
}

// generateTraceID creates a random trace ID for request tracking.
// Returns a 32-character hex string (16 bytes).
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is not worth taking the request down;
		// fall back to a UUID-derived value.
		slog.Error("failed to generate random trace ID", "error", err)
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}
