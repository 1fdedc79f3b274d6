package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/service"
)

// TaskHandler handles the task CRUD and workflow transition endpoints.
type TaskHandler struct {
	taskService service.TaskService
	validator   *validator.Validate
}

// NewTaskHandler creates a new TaskHandler with the given dependencies.
func NewTaskHandler(taskService service.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		validator:   validator.New(),
	}
}

// CreateTask handles POST /api/tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreateTaskRequest
	if err := DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Title is required")
		return
	}

	status, ok := statusFromRequest(w, r, req.Status)
	if !ok {
		return
	}

	description := ""
	if req.Description != nil {
		description = *req.Description
	}

	task, err := h.taskService.CreateTask(r.Context(), userID, req.Title, description, status)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	shared.RespondWithSuccess(w, r, http.StatusCreated, "Task created successfully", map[string]any{
		"task": task,
	})
}

// ListTasks handles GET /api/tasks with an optional exact status filter.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var statusFilter *domain.TaskStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.TaskStatus(raw)
		if !status.Valid() {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task status")
			return
		}
		statusFilter = &status
	}

	tasks, err := h.taskService.ListTasks(r.Context(), userID, statusFilter)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	shared.RespondWithSuccess(w, r, http.StatusOK, "", map[string]any{
		"tasks": tasks,
	})
}

// GetTask handles GET /api/tasks/{id}. The path segment may be an
// internal ID or a task code.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	task, err := h.taskService.GetTask(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	shared.RespondWithSuccess(w, r, http.StatusOK, "", map[string]any{
		"task": task,
	})
}

// UpdateTask handles PUT /api/tasks/{id}, the free-form edit path.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req UpdateTaskRequest
	if err := DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	update := service.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Status != nil {
		status := domain.TaskStatus(*req.Status)
		if !status.Valid() {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task status")
			return
		}
		update.Status = &status
	}

	task, err := h.taskService.UpdateTask(r.Context(), userID, chi.URLParam(r, "id"), update)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	shared.RespondWithSuccess(w, r, http.StatusOK, "Task updated successfully", map[string]any{
		"task": task,
	})
}

// DeleteTask handles DELETE /api/tasks/{id}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.taskService.DeleteTask(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		HandleServiceError(w, r, err)
		return
	}

	shared.RespondWithSuccess(w, r, http.StatusOK, "Task deleted successfully", nil)
}

// StartTesting handles POST /api/task/{code}, the guarded
// in_progress -> testing transition.
func (h *TaskHandler) StartTesting(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	task, err := h.taskService.StartTesting(r.Context(), userID, chi.URLParam(r, "code"))
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	shared.RespondWithSuccess(w, r, http.StatusOK, "Task updated to testing", map[string]any{
		"task": task,
	})
}

// TaskFailed handles POST /api/task-failed/{code}, the unconditional
// -> fixing transition. Honors the automation bypass.
func (h *TaskHandler) TaskFailed(w http.ResponseWriter, r *http.Request) {
	owner, ok := callerOwner(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	task, err := h.taskService.MarkFailed(r.Context(), owner, chi.URLParam(r, "code"))
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	shared.RespondWithSuccess(w, r, http.StatusOK, "Task status updated to fixing", map[string]any{
		"task": task,
	})
}

// BulkTaskFailed handles POST /api/bulk-task-failed. Honors the
// automation bypass.
func (h *TaskHandler) BulkTaskFailed(w http.ResponseWriter, r *http.Request) {
	owner, ok := callerOwner(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req BulkTaskFailedRequest
	if err := DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if len(req.IDs) == 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Task IDs array is required")
		return
	}

	tasks, err := h.taskService.BulkMarkFailed(r.Context(), owner, req.IDs)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	message := fmt.Sprintf("%d tasks updated to fixing", len(tasks))
	shared.RespondWithSuccess(w, r, http.StatusOK, message, map[string]any{
		"updated": len(tasks),
		"tasks":   tasks,
	})
}

// statusFromRequest parses an optional status string, writing a 400
// envelope and returning ok=false when it is not a valid enum value.
// A nil input yields the empty status, which downstream defaults to todo.
func statusFromRequest(w http.ResponseWriter, r *http.Request, raw *string) (domain.TaskStatus, bool) {
	if raw == nil {
		return "", true
	}
	status := domain.TaskStatus(*raw)
	if !status.Valid() {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task status")
		return "", false
	}
	return status, true
}
