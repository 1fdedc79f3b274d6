package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// TaskStore defines the interface for task data persistence.
type TaskStore interface {
	// Create saves a new task, allocating its code under the given
	// initials prefix. The allocation and insert run in one transaction
	// so concurrent creations under the same prefix serialize; a
	// concurrent collision surfaces as ErrCodeConflict, which callers
	// should retry. On success the task's Code field is populated.
	Create(ctx context.Context, task *domain.Task, prefix string) error

	// GetByID retrieves a task by its internal ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetByCode retrieves a task by its human-readable code.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByCode(ctx context.Context, code string) (*domain.Task, error)

	// ListByUser returns all tasks owned by the given user, newest
	// created first. A non-nil status restricts the result to tasks
	// with exactly that status.
	ListByUser(ctx context.Context, userID uuid.UUID, status *domain.TaskStatus) ([]*domain.Task, error)

	// Update persists the task's title, description, status and
	// UpdatedAt timestamp. Returns ErrTaskNotFound if the task does
	// not exist.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes a task by its internal ID.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// MarkFailedByCodes sets status to fixing on every task whose code
	// is in codes, restricted to tasks owned by ownerID when it is
	// non-nil (nil means the caller holds the automation bypass). The
	// update is a single atomic statement; codes that match no row or
	// a row owned by someone else are silently skipped. Returns the
	// updated tasks.
	MarkFailedByCodes(ctx context.Context, codes []string, ownerID *uuid.UUID) ([]*domain.Task, error)
}
