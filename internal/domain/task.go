package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the workflow state of a task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusTesting    TaskStatus = "testing"
	TaskStatusFixing     TaskStatus = "fixing"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusClosed     TaskStatus = "closed"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID       = errors.New("task ID cannot be empty")
	ErrEmptyTaskUserID   = errors.New("task user ID cannot be empty")
	ErrEmptyTaskTitle    = errors.New("task title cannot be empty")
	ErrInvalidTaskStatus = errors.New("invalid task status")
)

// Task represents a unit of work owned by a single user. Besides its
// opaque ID it carries a human-readable code (see code.go) that is
// unique across all users and never reassigned.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Code        string     `json:"code"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      TaskStatus `json:"status"`
	UserID      uuid.UUID  `json:"user_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTask creates a new Task owned by the given user. The title is
// trimmed and must be non-empty; the description is normalized with
// NormalizeDescription; an empty status defaults to todo. The code is
// left empty - it is allocated by the store at insert time.
// Returns an error if validation fails.
func NewTask(userID uuid.UUID, title, description string, status TaskStatus) (*Task, error) {
	if status == "" {
		status = TaskStatusTodo
	}

	task := &Task{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(title),
		Description: NormalizeDescription(&description),
		Status:      status,
		UserID:      userID,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.UserID == uuid.Nil {
		return ErrEmptyTaskUserID
	}

	if t.Title == "" {
		return ErrEmptyTaskTitle
	}

	if !t.Status.Valid() {
		return ErrInvalidTaskStatus
	}

	return nil
}

// UpdateStatus updates the task's status and the UpdatedAt timestamp.
// Returns an error if the new status is invalid.
func (t *Task) UpdateStatus(status TaskStatus) error {
	if !status.Valid() {
		return ErrInvalidTaskStatus
	}

	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Valid reports whether the status is one of the defined enum values.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusTesting,
		TaskStatusFixing, TaskStatusDone, TaskStatusClosed:
		return true
	default:
		return false
	}
}

// NormalizeDescription trims the description and maps empty input to nil,
// so blank descriptions are stored as NULL rather than "".
func NormalizeDescription(description *string) *string {
	if description == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*description)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
