package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apiMiddleware "github.com/phrazzld/taskflow-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public)
		r.Post("/auth/register", app.authHandler.Register)
		r.Post("/auth/login", app.authHandler.Login)
		r.Post("/auth/logout", app.authHandler.Logout)

		// Protected routes requiring a user identity
		r.Group(func(r chi.Router) {
			r.Use(app.authMiddleware.Authenticate)

			r.Post("/tasks", app.taskHandler.CreateTask)
			r.Get("/tasks", app.taskHandler.ListTasks)
			r.Get("/tasks/{id}", app.taskHandler.GetTask)
			r.Put("/tasks/{id}", app.taskHandler.UpdateTask)
			r.Delete("/tasks/{id}", app.taskHandler.DeleteTask)

			r.Post("/task/{code}", app.taskHandler.StartTesting)
		})

		// Automation-facing routes additionally honoring the bypass key
		r.Group(func(r chi.Router) {
			r.Use(app.authMiddleware.AuthenticateAllowBypass)

			r.Post("/task-failed/{code}", app.taskHandler.TaskFailed)
			r.Post("/bulk-task-failed", app.taskHandler.BulkTaskFailed)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
