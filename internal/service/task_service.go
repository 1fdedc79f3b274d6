package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// maxCodeAllocationAttempts bounds the retry loop when two concurrent
// creations under the same initials prefix collide on a code.
const maxCodeAllocationAttempts = 3

// TaskUpdate describes a partial update to a task. Nil fields are left
// unchanged; a non-nil empty description clears the stored value.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *domain.TaskStatus
}

// TaskService defines the task workflow operations exposed to the API
// layer. Operations taking a userID enforce ownership; the mark-failed
// operations take a nilable owner so the automation bypass can skip
// the ownership check.
type TaskService interface {
	// CreateTask creates a task for the given user, allocating its
	// code from the user's initials. Returns store.ErrUserNotFound if
	// the user does not exist.
	CreateTask(
		ctx context.Context,
		userID uuid.UUID,
		title, description string,
		status domain.TaskStatus,
	) (*domain.Task, error)

	// ListTasks returns the user's tasks, newest created first,
	// optionally filtered to exactly one status.
	ListTasks(ctx context.Context, userID uuid.UUID, status *domain.TaskStatus) ([]*domain.Task, error)

	// GetTask fetches a task by internal ID or code (ref) and verifies
	// ownership. Returns ErrNotTaskOwner if the task belongs to
	// another user.
	GetTask(ctx context.Context, userID uuid.UUID, ref string) (*domain.Task, error)

	// UpdateTask applies a partial update to an owned task. No
	// transition legality is checked here: this is the free-form edit
	// path, distinct from the guarded transitions below.
	UpdateTask(ctx context.Context, userID uuid.UUID, ref string, update TaskUpdate) (*domain.Task, error)

	// DeleteTask hard-deletes an owned task.
	DeleteTask(ctx context.Context, userID uuid.UUID, ref string) error

	// StartTesting moves a task from in_progress to testing. Any other
	// current status yields a *TransitionError.
	StartTesting(ctx context.Context, userID uuid.UUID, code string) (*domain.Task, error)

	// MarkFailed moves a task to fixing regardless of its current
	// status. A nil ownerID skips the ownership check (bypass).
	MarkFailed(ctx context.Context, ownerID *uuid.UUID, code string) (*domain.Task, error)

	// BulkMarkFailed moves every task in codes owned by ownerID (or
	// all matching tasks when ownerID is nil) to fixing in one atomic
	// batch. Codes that match nothing are silently skipped; the
	// returned slice holds only the tasks actually updated.
	BulkMarkFailed(ctx context.Context, ownerID *uuid.UUID, codes []string) ([]*domain.Task, error)
}

// taskService is the production implementation of TaskService.
type taskService struct {
	taskStore store.TaskStore
	userStore store.UserStore
	logger    *slog.Logger
}

// Ensure taskService implements TaskService interface
var _ TaskService = (*taskService)(nil)

// NewTaskService creates a new TaskService with the given dependencies.
// If log is nil, the default logger is used.
func NewTaskService(taskStore store.TaskStore, userStore store.UserStore, log *slog.Logger) TaskService {
	if taskStore == nil {
		panic("taskStore cannot be nil")
	}
	if userStore == nil {
		panic("userStore cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &taskService{
		taskStore: taskStore,
		userStore: userStore,
		logger:    log.With(slog.String("component", "task_service")),
	}
}

// CreateTask implements TaskService.CreateTask.
// The code allocation inside the store is transactional but two
// concurrent creations under the same prefix can still race to the
// unique index, so a conflict is retried with a fresh scan.
func (s *taskService) CreateTask(
	ctx context.Context,
	userID uuid.UUID,
	title, description string,
	status domain.TaskStatus,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	prefix := domain.Initials(user.Name)

	var lastErr error
	for attempt := 1; attempt <= maxCodeAllocationAttempts; attempt++ {
		task, err := domain.NewTask(userID, title, description, status)
		if err != nil {
			return nil, err
		}

		err = s.taskStore.Create(ctx, task, prefix)
		if err == nil {
			log.Info("task created",
				slog.String("task_id", task.ID.String()),
				slog.String("code", task.Code),
				slog.String("user_id", userID.String()))
			return task, nil
		}

		if !errors.Is(err, store.ErrCodeConflict) {
			return nil, err
		}

		lastErr = err
		log.Debug("task code conflict, retrying allocation",
			slog.String("prefix", prefix),
			slog.Int("attempt", attempt))
	}

	return nil, fmt.Errorf("code allocation exhausted %d attempts: %w",
		maxCodeAllocationAttempts, lastErr)
}

// ListTasks implements TaskService.ListTasks.
func (s *taskService) ListTasks(
	ctx context.Context,
	userID uuid.UUID,
	status *domain.TaskStatus,
) ([]*domain.Task, error) {
	return s.taskStore.ListByUser(ctx, userID, status)
}

// GetTask implements TaskService.GetTask.
func (s *taskService) GetTask(ctx context.Context, userID uuid.UUID, ref string) (*domain.Task, error) {
	return s.ownedTask(ctx, userID, ref)
}

// UpdateTask implements TaskService.UpdateTask.
func (s *taskService) UpdateTask(
	ctx context.Context,
	userID uuid.UUID,
	ref string,
	update TaskUpdate,
) (*domain.Task, error) {
	task, err := s.ownedTask(ctx, userID, ref)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		task.Title = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		task.Description = domain.NormalizeDescription(update.Description)
	}
	if update.Status != nil {
		task.Status = *update.Status
	}

	if err := task.Validate(); err != nil {
		return nil, domain.NewValidationError("task", err.Error(), domain.ErrValidation)
	}
	task.UpdatedAt = time.Now().UTC()

	if err := s.taskStore.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask implements TaskService.DeleteTask.
func (s *taskService) DeleteTask(ctx context.Context, userID uuid.UUID, ref string) error {
	task, err := s.ownedTask(ctx, userID, ref)
	if err != nil {
		return err
	}

	return s.taskStore.Delete(ctx, task.ID)
}

// StartTesting implements TaskService.StartTesting.
func (s *taskService) StartTesting(ctx context.Context, userID uuid.UUID, code string) (*domain.Task, error) {
	task, err := s.taskStore.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if task.UserID != userID {
		return nil, ErrNotTaskOwner
	}

	if task.Status != domain.TaskStatusInProgress {
		return nil, &TransitionError{
			Required: domain.TaskStatusInProgress,
			Target:   domain.TaskStatusTesting,
			Current:  task.Status,
		}
	}

	if err := task.UpdateStatus(domain.TaskStatusTesting); err != nil {
		return nil, err
	}

	if err := s.taskStore.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// MarkFailed implements TaskService.MarkFailed.
func (s *taskService) MarkFailed(ctx context.Context, ownerID *uuid.UUID, code string) (*domain.Task, error) {
	task, err := s.taskStore.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if ownerID != nil && task.UserID != *ownerID {
		return nil, ErrNotTaskOwner
	}

	if err := task.UpdateStatus(domain.TaskStatusFixing); err != nil {
		return nil, err
	}

	if err := s.taskStore.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// BulkMarkFailed implements TaskService.BulkMarkFailed.
func (s *taskService) BulkMarkFailed(
	ctx context.Context,
	ownerID *uuid.UUID,
	codes []string,
) ([]*domain.Task, error) {
	if len(codes) == 0 {
		return nil, domain.NewValidationError("ids", "array is required", domain.ErrValidation)
	}

	tasks, err := s.taskStore.MarkFailedByCodes(ctx, codes, ownerID)
	if err != nil {
		return nil, err
	}

	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Info("bulk mark-failed applied",
		slog.Int("requested", len(codes)),
		slog.Int("updated", len(tasks)))

	return tasks, nil
}

// ownedTask resolves ref as an internal UUID when it parses as one,
// otherwise as a task code, and verifies the task belongs to userID.
func (s *taskService) ownedTask(ctx context.Context, userID uuid.UUID, ref string) (*domain.Task, error) {
	var (
		task *domain.Task
		err  error
	)

	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		task, err = s.taskStore.GetByID(ctx, id)
	} else {
		task, err = s.taskStore.GetByCode(ctx, ref)
	}
	if err != nil {
		return nil, err
	}

	if task.UserID != userID {
		return nil, ErrNotTaskOwner
	}
	return task, nil
}
