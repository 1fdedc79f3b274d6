package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/service"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// mockTaskService implements service.TaskService with function fields.
type mockTaskService struct {
	createTaskFn     func(ctx context.Context, userID uuid.UUID, title, description string, status domain.TaskStatus) (*domain.Task, error)
	listTasksFn      func(ctx context.Context, userID uuid.UUID, status *domain.TaskStatus) ([]*domain.Task, error)
	getTaskFn        func(ctx context.Context, userID uuid.UUID, ref string) (*domain.Task, error)
	updateTaskFn     func(ctx context.Context, userID uuid.UUID, ref string, update service.TaskUpdate) (*domain.Task, error)
	deleteTaskFn     func(ctx context.Context, userID uuid.UUID, ref string) error
	startTestingFn   func(ctx context.Context, userID uuid.UUID, code string) (*domain.Task, error)
	markFailedFn     func(ctx context.Context, ownerID *uuid.UUID, code string) (*domain.Task, error)
	bulkMarkFailedFn func(ctx context.Context, ownerID *uuid.UUID, codes []string) ([]*domain.Task, error)
}

var _ service.TaskService = (*mockTaskService)(nil)

func (m *mockTaskService) CreateTask(
	ctx context.Context,
	userID uuid.UUID,
	title, description string,
	status domain.TaskStatus,
) (*domain.Task, error) {
	return m.createTaskFn(ctx, userID, title, description, status)
}

func (m *mockTaskService) ListTasks(
	ctx context.Context,
	userID uuid.UUID,
	status *domain.TaskStatus,
) ([]*domain.Task, error) {
	return m.listTasksFn(ctx, userID, status)
}

func (m *mockTaskService) GetTask(ctx context.Context, userID uuid.UUID, ref string) (*domain.Task, error) {
	return m.getTaskFn(ctx, userID, ref)
}

func (m *mockTaskService) UpdateTask(
	ctx context.Context,
	userID uuid.UUID,
	ref string,
	update service.TaskUpdate,
) (*domain.Task, error) {
	return m.updateTaskFn(ctx, userID, ref, update)
}

func (m *mockTaskService) DeleteTask(ctx context.Context, userID uuid.UUID, ref string) error {
	return m.deleteTaskFn(ctx, userID, ref)
}

func (m *mockTaskService) StartTesting(ctx context.Context, userID uuid.UUID, code string) (*domain.Task, error) {
	return m.startTestingFn(ctx, userID, code)
}

func (m *mockTaskService) MarkFailed(ctx context.Context, ownerID *uuid.UUID, code string) (*domain.Task, error) {
	return m.markFailedFn(ctx, ownerID, code)
}

func (m *mockTaskService) BulkMarkFailed(
	ctx context.Context,
	ownerID *uuid.UUID,
	codes []string,
) ([]*domain.Task, error) {
	return m.bulkMarkFailedFn(ctx, ownerID, codes)
}

// taskRouter mounts the handler on the real route tree so chi URL
// params resolve the way they do in production.
func taskRouter(h *TaskHandler) chi.Router {
	r := chi.NewRouter()
	r.Post("/tasks", h.CreateTask)
	r.Get("/tasks", h.ListTasks)
	r.Get("/tasks/{id}", h.GetTask)
	r.Put("/tasks/{id}", h.UpdateTask)
	r.Delete("/tasks/{id}", h.DeleteTask)
	r.Post("/task/{code}", h.StartTesting)
	r.Post("/task-failed/{code}", h.TaskFailed)
	r.Post("/bulk-task-failed", h.BulkTaskFailed)
	return r
}

func asUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), shared.UserIDContextKey, userID))
}

func asBypass(req *http.Request) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), shared.BypassContextKey, true))
}

// envelope mirrors shared.Response with the data kept raw for
// per-test decoding.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doRequest(t *testing.T, router chi.Router, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func sampleTask(userID uuid.UUID, code string, status domain.TaskStatus) *domain.Task {
	return &domain.Task{
		ID:     uuid.New(),
		Code:   code,
		Title:  "Write docs",
		Status: status,
		UserID: userID,
	}
}

func TestCreateTaskHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("success", func(t *testing.T) {
		svc := &mockTaskService{
			createTaskFn: func(ctx context.Context, uid uuid.UUID, title, description string, status domain.TaskStatus) (*domain.Task, error) {
				assert.Equal(t, userID, uid)
				assert.Equal(t, "Write docs", title)
				return sampleTask(uid, "DM-001", domain.TaskStatusTodo), nil
			},
		}
		router := taskRouter(NewTaskHandler(svc))

		req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(`{"title":"Write docs"}`))
		rec, env := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, env.Success)
		assert.Equal(t, "Task created successfully", env.Message)

		var data struct {
			Task domain.Task `json:"task"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "DM-001", data.Task.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		router := taskRouter(NewTaskHandler(&mockTaskService{}))

		req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(`{"title":"Write docs"}`))
		rec, env := doRequest(t, router, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, env.Success)
		assert.Equal(t, "Unauthorized", env.Message)
	})

	t.Run("missing_title", func(t *testing.T) {
		router := taskRouter(NewTaskHandler(&mockTaskService{}))

		req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(`{}`))
		rec, env := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Title is required", env.Message)
	})

	t.Run("invalid_status", func(t *testing.T) {
		router := taskRouter(NewTaskHandler(&mockTaskService{}))

		body := `{"title":"Write docs","status":"archived"}`
		req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(body))
		rec, env := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid task status", env.Message)
	})

	t.Run("malformed_json", func(t *testing.T) {
		router := taskRouter(NewTaskHandler(&mockTaskService{}))

		req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(`{"title":`))
		rec, env := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid request format", env.Message)
	})
}

func TestListTasksHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("passes_status_filter", func(t *testing.T) {
		var seenFilter *domain.TaskStatus
		svc := &mockTaskService{
			listTasksFn: func(ctx context.Context, uid uuid.UUID, status *domain.TaskStatus) ([]*domain.Task, error) {
				seenFilter = status
				return []*domain.Task{sampleTask(uid, "DM-001", domain.TaskStatusFixing)}, nil
			},
		}
		router := taskRouter(NewTaskHandler(svc))

		req := httptest.NewRequest(http.MethodGet, "/tasks?status=fixing", nil)
		rec, env := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)
		require.NotNil(t, seenFilter)
		assert.Equal(t, domain.TaskStatusFixing, *seenFilter)
	})

	t.Run("no_filter", func(t *testing.T) {
		filterSeen := false
		var seenFilter *domain.TaskStatus
		svc := &mockTaskService{
			listTasksFn: func(ctx context.Context, uid uuid.UUID, status *domain.TaskStatus) ([]*domain.Task, error) {
				filterSeen = true
				seenFilter = status
				return nil, nil
			},
		}
		router := taskRouter(NewTaskHandler(svc))

		req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
		rec, _ := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, filterSeen)
		assert.Nil(t, seenFilter)
	})

	t.Run("invalid_filter", func(t *testing.T) {
		router := taskRouter(NewTaskHandler(&mockTaskService{}))

		req := httptest.NewRequest(http.MethodGet, "/tasks?status=bogus", nil)
		rec, env := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid task status", env.Message)
	})
}

func TestGetTaskHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("not_found", func(t *testing.T) {
		svc := &mockTaskService{
			getTaskFn: func(ctx context.Context, uid uuid.UUID, ref string) (*domain.Task, error) {
				return nil, store.ErrTaskNotFound
			},
		}
		router := taskRouter(NewTaskHandler(svc))

		req := httptest.NewRequest(http.MethodGet, "/tasks/DM-999", nil)
		rec, env := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Task not found", env.Message)
	})

	t.Run("foreign_task_is_forbidden", func(t *testing.T) {
		svc := &mockTaskService{
			getTaskFn: func(ctx context.Context, uid uuid.UUID, ref string) (*domain.Task, error) {
				return nil, service.ErrNotTaskOwner
			},
		}
		router := taskRouter(NewTaskHandler(svc))

		req := httptest.NewRequest(http.MethodGet, "/tasks/DM-001", nil)
		rec, env := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Forbidden", env.Message)
	})

	t.Run("resolves_path_ref", func(t *testing.T) {
		var seenRef string
		svc := &mockTaskService{
			getTaskFn: func(ctx context.Context, uid uuid.UUID, ref string) (*domain.Task, error) {
				seenRef = ref
				return sampleTask(uid, ref, domain.TaskStatusTodo), nil
			},
		}
		router := taskRouter(NewTaskHandler(svc))

		req := httptest.NewRequest(http.MethodGet, "/tasks/DM-001", nil)
		rec, _ := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "DM-001", seenRef)
	})
}

func TestUpdateTaskHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("success", func(t *testing.T) {
		var seenUpdate service.TaskUpdate
		svc := &mockTaskService{
			updateTaskFn: func(ctx context.Context, uid uuid.UUID, ref string, update service.TaskUpdate) (*domain.Task, error) {
				seenUpdate = update
				return sampleTask(uid, "DM-001", domain.TaskStatusDone), nil
			},
		}
		router := taskRouter(NewTaskHandler(svc))

		body := `{"title":"New title","status":"done"}`
		req := httptest.NewRequest(http.MethodPut, "/tasks/DM-001", strings.NewReader(body))
		rec, env := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Task updated successfully", env.Message)
		require.NotNil(t, seenUpdate.Title)
		assert.Equal(t, "New title", *seenUpdate.Title)
		require.NotNil(t, seenUpdate.Status)
		assert.Equal(t, domain.TaskStatusDone, *seenUpdate.Status)
		assert.Nil(t, seenUpdate.Description)
	})

	t.Run("invalid_status", func(t *testing.T) {
		router := taskRouter(NewTaskHandler(&mockTaskService{}))

		req := httptest.NewRequest(http.MethodPut, "/tasks/DM-001", strings.NewReader(`{"status":"archived"}`))
		rec, env := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid task status", env.Message)
	})
}

func TestDeleteTaskHandler(t *testing.T) {
	userID := uuid.New()

	svc := &mockTaskService{
		deleteTaskFn: func(ctx context.Context, uid uuid.UUID, ref string) error {
			return nil
		},
	}
	router := taskRouter(NewTaskHandler(svc))

	req := httptest.NewRequest(http.MethodDelete, "/tasks/DM-001", nil)
	rec, env := doRequest(t, router, asUser(req, userID))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Task deleted successfully", env.Message)
}

func TestStartTestingHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("success", func(t *testing.T) {
		svc := &mockTaskService{
			startTestingFn: func(ctx context.Context, uid uuid.UUID, code string) (*domain.Task, error) {
				assert.Equal(t, "DM-001", code)
				return sampleTask(uid, code, domain.TaskStatusTesting), nil
			},
		}
		router := taskRouter(NewTaskHandler(svc))

		req := httptest.NewRequest(http.MethodPost, "/task/DM-001", nil)
		rec, env := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Task updated to testing", env.Message)
	})

	t.Run("guard_violation", func(t *testing.T) {
		svc := &mockTaskService{
			startTestingFn: func(ctx context.Context, uid uuid.UUID, code string) (*domain.Task, error) {
				return nil, &service.TransitionError{
					Required: domain.TaskStatusInProgress,
					Target:   domain.TaskStatusTesting,
					Current:  domain.TaskStatusTodo,
				}
			},
		}
		router := taskRouter(NewTaskHandler(svc))

		req := httptest.NewRequest(http.MethodPost, "/task/DM-001", nil)
		rec, env := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, env.Success)
		assert.Equal(t,
			"task status must be 'in_progress' to update to testing; current status: todo",
			env.Message)
	})
}

func TestTaskFailedHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("identity_scopes_to_owner", func(t *testing.T) {
		var seenOwner *uuid.UUID
		svc := &mockTaskService{
			markFailedFn: func(ctx context.Context, ownerID *uuid.UUID, code string) (*domain.Task, error) {
				seenOwner = ownerID
				return sampleTask(userID, code, domain.TaskStatusFixing), nil
			},
		}
		router := taskRouter(NewTaskHandler(svc))

		req := httptest.NewRequest(http.MethodPost, "/task-failed/DM-001", nil)
		rec, env := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Task status updated to fixing", env.Message)
		require.NotNil(t, seenOwner)
		assert.Equal(t, userID, *seenOwner)
	})

	t.Run("bypass_passes_nil_owner", func(t *testing.T) {
		var seenOwner *uuid.UUID
		ownerSeen := false
		svc := &mockTaskService{
			markFailedFn: func(ctx context.Context, ownerID *uuid.UUID, code string) (*domain.Task, error) {
				seenOwner = ownerID
				ownerSeen = true
				return sampleTask(userID, code, domain.TaskStatusFixing), nil
			},
		}
		router := taskRouter(NewTaskHandler(svc))

		req := httptest.NewRequest(http.MethodPost, "/task-failed/DM-001", nil)
		rec, _ := doRequest(t, router, asBypass(req))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, ownerSeen)
		assert.Nil(t, seenOwner)
	})

	t.Run("foreign_task_without_bypass", func(t *testing.T) {
		svc := &mockTaskService{
			markFailedFn: func(ctx context.Context, ownerID *uuid.UUID, code string) (*domain.Task, error) {
				return nil, service.ErrNotTaskOwner
			},
		}
		router := taskRouter(NewTaskHandler(svc))

		req := httptest.NewRequest(http.MethodPost, "/task-failed/DM-001", nil)
		rec, env := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Forbidden", env.Message)
	})

	t.Run("no_credential_context", func(t *testing.T) {
		router := taskRouter(NewTaskHandler(&mockTaskService{}))

		req := httptest.NewRequest(http.MethodPost, "/task-failed/DM-001", nil)
		rec, env := doRequest(t, router, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized", env.Message)
	})
}

func TestBulkTaskFailedHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("empty_ids_rejected", func(t *testing.T) {
		router := taskRouter(NewTaskHandler(&mockTaskService{}))

		req := httptest.NewRequest(http.MethodPost, "/bulk-task-failed", strings.NewReader(`{"ids":[]}`))
		rec, env := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Task IDs array is required", env.Message)
	})

	t.Run("reports_updated_count", func(t *testing.T) {
		svc := &mockTaskService{
			bulkMarkFailedFn: func(ctx context.Context, ownerID *uuid.UUID, codes []string) ([]*domain.Task, error) {
				assert.Equal(t, []string{"DM-001", "DM-002", "DM-999"}, codes)
				return []*domain.Task{
					sampleTask(userID, "DM-001", domain.TaskStatusFixing),
					sampleTask(userID, "DM-002", domain.TaskStatusFixing),
				}, nil
			},
		}
		router := taskRouter(NewTaskHandler(svc))

		body := `{"ids":["DM-001","DM-002","DM-999"]}`
		req := httptest.NewRequest(http.MethodPost, "/bulk-task-failed", strings.NewReader(body))
		rec, env := doRequest(t, router, asUser(req, userID))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2 tasks updated to fixing", env.Message)

		var data struct {
			Updated int            `json:"updated"`
			Tasks   []*domain.Task `json:"tasks"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, 2, data.Updated)
		assert.Len(t, data.Tasks, 2)
	})

	t.Run("bypass_passes_nil_owner", func(t *testing.T) {
		var seenOwner *uuid.UUID
		ownerSeen := false
		svc := &mockTaskService{
			bulkMarkFailedFn: func(ctx context.Context, ownerID *uuid.UUID, codes []string) ([]*domain.Task, error) {
				seenOwner = ownerID
				ownerSeen = true
				return nil, nil
			},
		}
		router := taskRouter(NewTaskHandler(svc))

		req := httptest.NewRequest(http.MethodPost, "/bulk-task-failed", strings.NewReader(`{"ids":["DM-001"]}`))
		rec, _ := doRequest(t, router, asBypass(req))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, ownerSeen)
		assert.Nil(t, seenOwner)
	})
}
