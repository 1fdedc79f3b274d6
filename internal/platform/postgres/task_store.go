package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// tasksCodeUniqueConstraint is the unique index backing the code column.
// It is the safety net under the transactional code allocation.
const tasksCodeUniqueConstraint = "tasks_code_key"

// taskColumns is the select list shared by every task query.
const taskColumns = "id, code, title, description, status, user_id, created_at, updated_at"

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
// Statements go through the store.DBTX query surface so the code
// allocation transaction and the pool share the same helpers; the pool
// itself is kept only to begin that transaction.
type PostgresTaskStore struct {
	pool   *sql.DB
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. It accepts a database connection that should be
// initialized and managed by the caller.
func NewPostgresTaskStore(pool *sql.DB, log *slog.Logger) *PostgresTaskStore {
	if pool == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &PostgresTaskStore{
		pool:   pool,
		db:     pool,
		logger: log.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// Create implements store.TaskStore.Create.
// The prefix scan and the insert run in one transaction; FOR UPDATE
// serializes concurrent allocations against existing rows under the
// same prefix. Two first-ever creations under a brand new prefix have
// no rows to lock, so the unique index on code catches that window and
// the conflict surfaces as store.ErrCodeConflict for the caller to retry.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task, prefix string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return err
	}

	return store.RunInTransaction(ctx, s.pool, nil, func(ctx context.Context, tx *sql.Tx) error {
		seq, err := nextSequence(ctx, tx, prefix)
		if err != nil {
			return err
		}
		task.Code = domain.FormatCode(prefix, seq)

		if err := insertTask(ctx, tx, task); err != nil {
			if isUniqueViolation(err, tasksCodeUniqueConstraint) {
				log.Debug("task code collided with concurrent insert",
					slog.String("code", task.Code))
				return store.ErrCodeConflict
			}
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: user with ID %s not found",
					store.ErrInvalidEntity, task.UserID)
			}

			log.Error("failed to create task",
				slog.String("error", err.Error()),
				slog.String("task_id", task.ID.String()),
				slog.String("user_id", task.UserID.String()))
			return err
		}

		return nil
	})
}

// insertTask writes a task row through the given query surface, which
// is the allocation transaction during Create.
func insertTask(ctx context.Context, q store.DBTX, task *domain.Task) error {
	query := `
		INSERT INTO tasks (id, code, title, description, status, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.ExecContext(
		ctx,
		query,
		task.ID,
		task.Code,
		task.Title,
		task.Description,
		string(task.Status),
		task.UserID,
		task.CreatedAt,
		task.UpdatedAt,
	)
	return err
}

// nextSequence finds the highest allocated sequence number under the
// given prefix and returns the next one. Codes that do not parse as
// <prefix>-<integer> are skipped. Matching rows are locked for the
// duration of the transaction q runs in.
func nextSequence(ctx context.Context, q store.DBTX, prefix string) (int, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT code FROM tasks WHERE code LIKE $1 FOR UPDATE`,
		prefix+"-%",
	)
	if err != nil {
		return 0, fmt.Errorf("failed to scan codes for prefix %s: %w", prefix, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	maxSeq := 0
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return 0, err
		}
		if seq, ok := domain.CodeSequence(code, prefix); ok && seq > maxSeq {
			maxSeq = seq
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	return maxSeq + 1, nil
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(s.db.QueryRowContext(ctx, query, id))
}

// GetByCode implements store.TaskStore.GetByCode
func (s *PostgresTaskStore) GetByCode(ctx context.Context, code string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE code = $1`
	return scanTask(s.db.QueryRowContext(ctx, query, code))
}

// ListByUser implements store.TaskStore.ListByUser
func (s *PostgresTaskStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
	status *domain.TaskStatus,
) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	args := []any{userID}

	if status != nil {
		query += ` AND status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanTasks(rows)
}

// Update implements store.TaskStore.Update
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		task.UpdatedAt,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

// Delete implements store.TaskStore.Delete
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

// MarkFailedByCodes implements store.TaskStore.MarkFailedByCodes.
// The single UPDATE ... RETURNING statement keeps the batch atomic:
// the returned rows always match the committed state.
func (s *PostgresTaskStore) MarkFailedByCodes(
	ctx context.Context,
	codes []string,
	ownerID *uuid.UUID,
) ([]*domain.Task, error) {
	query := `
		UPDATE tasks
		SET status = $2, updated_at = now()
		WHERE code = ANY($1)
	`
	args := []any{codes, string(domain.TaskStatusFixing)}

	if ownerID != nil {
		query += ` AND user_id = $3`
		args = append(args, *ownerID)
	}
	query += ` RETURNING ` + taskColumns

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanTasks(rows)
}

// scanTask maps a single-row query result onto a domain.Task.
func scanTask(row *sql.Row) (*domain.Task, error) {
	var task domain.Task
	err := row.Scan(
		&task.ID,
		&task.Code,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.UserID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

// scanTasks maps a multi-row query result onto domain.Tasks.
func scanTasks(rows *sql.Rows) ([]*domain.Task, error) {
	tasks := []*domain.Task{}
	for rows.Next() {
		var task domain.Task
		err := rows.Scan(
			&task.ID,
			&task.Code,
			&task.Title,
			&task.Description,
			&task.Status,
			&task.UserID,
			&task.CreatedAt,
			&task.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, &task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}
