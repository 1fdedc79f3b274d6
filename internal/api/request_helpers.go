package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/api/shared"
)

// DecodeJSON decodes the request body into v. Unknown fields are
// ignored, matching the API's tolerant parsing.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("request body is empty")
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// callerOwner resolves the ownership scope for the mark-failed
// operations: a nil owner for bypass-authorized requests, the user's
// ID otherwise. Returns false if the request carries neither (the
// middleware should have rejected it already).
func callerOwner(r *http.Request) (*uuid.UUID, bool) {
	if shared.IsBypass(r.Context()) {
		return nil, true
	}
	if userID, ok := shared.UserIDFromContext(r.Context()); ok {
		return &userID, true
	}
	return nil, false
}
