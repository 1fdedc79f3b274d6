package main

import (
	"database/sql"
	"log/slog"

	"github.com/phrazzld/taskflow-api/internal/api"
	apiMiddleware "github.com/phrazzld/taskflow-api/internal/api/middleware"
	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/phrazzld/taskflow-api/internal/platform/postgres"
	"github.com/phrazzld/taskflow-api/internal/service"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
)

// application bundles the wired dependencies of the running server.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	authHandler    *api.AuthHandler
	taskHandler    *api.TaskHandler
	authMiddleware *apiMiddleware.AuthMiddleware
}

// newApplication wires stores, services and handlers on top of the
// given database connection.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	userStore := postgres.NewPostgresUserStore(db, logger)
	taskStore := postgres.NewPostgresTaskStore(db, logger)

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, err
	}

	taskService := service.NewTaskService(taskStore, userStore, logger)
	authorizer := auth.NewAuthorizer(jwtService, cfg.Auth.APIKey)

	return &application{
		config: cfg,
		logger: logger,
		db:     db,
		authHandler: api.NewAuthHandler(
			userStore,
			jwtService,
			auth.NewBcryptHasher(0),
			auth.NewBcryptVerifier(),
			&cfg.Auth,
		),
		taskHandler:    api.NewTaskHandler(taskService),
		authMiddleware: apiMiddleware.NewAuthMiddleware(authorizer),
	}, nil
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database connection", "error", err)
	}
}
