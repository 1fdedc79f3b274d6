package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/taskflow-api/internal/domain"
)

// Common service errors
var (
	// ErrNotTaskOwner is returned when the caller is authenticated but
	// does not own the task being read or mutated.
	ErrNotTaskOwner = errors.New("task does not belong to the caller")
)

// TransitionError is returned when a guarded status transition is
// attempted from a disallowed current status. Its message names the
// required precondition so clients can surface it directly.
type TransitionError struct {
	Required domain.TaskStatus
	Target   domain.TaskStatus
	Current  domain.TaskStatus
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf(
		"task status must be '%s' to update to %s; current status: %s",
		e.Required,
		e.Target,
		e.Current,
	)
}
