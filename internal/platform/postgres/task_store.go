package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Zhong-Ze-Wei/podcast/internal/store"
	"github.com/Zhong-Ze-Wei/podcast/internal/task"
)

const taskColumns = `id, type, subject_id, status, progress, result,
	error_message, created_at, started_at, completed_at`

// TaskStore implements task.Store using PostgreSQL. It is the durable side
// of the engine's write-through task registry.
type TaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewTaskStore creates a PostgreSQL-backed task store.
func NewTaskStore(db store.DBTX, logger *slog.Logger) *TaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ task.Store = (*TaskStore)(nil)

// CreateTask implements task.Store.CreateTask.
func (s *TaskStore) CreateTask(ctx context.Context, record *task.Record) error {
	query := `
		INSERT INTO tasks (id, type, subject_id, status, progress, result,
			error_message, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.Type,
		record.SubjectID,
		record.Status,
		record.Progress,
		nullableJSON(record.Result),
		record.ErrorMessage,
		record.CreatedAt,
		record.StartedAt,
		record.CompletedAt,
	)
	if err != nil {
		s.logger.Error("failed to create task record",
			slog.String("task_id", record.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// UpdateTask implements task.Store.UpdateTask.
func (s *TaskStore) UpdateTask(ctx context.Context, record *task.Record) error {
	query := `
		UPDATE tasks
		SET status = $1, progress = $2, result = $3, error_message = $4,
			started_at = $5, completed_at = $6
		WHERE id = $7
	`
	result, err := s.db.ExecContext(ctx, query,
		record.Status,
		record.Progress,
		nullableJSON(record.Result),
		record.ErrorMessage,
		record.StartedAt,
		record.CompletedAt,
		record.ID,
	)
	if err != nil {
		return MapError(err)
	}

	return checkRowsAffected(result, task.ErrTaskNotFound)
}

// UpdateProgress implements task.Store.UpdateProgress.
func (s *TaskStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET progress = $1 WHERE id = $2`, progress, id)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, task.ErrTaskNotFound)
}

// GetTask implements task.Store.GetTask.
func (s *TaskStore) GetTask(ctx context.Context, id uuid.UUID) (*task.Record, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	record, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.ErrTaskNotFound
		}
		return nil, MapError(err)
	}
	return record, nil
}

// FindActiveTask implements task.Store.FindActiveTask.
func (s *TaskStore) FindActiveTask(ctx context.Context, taskType string, subjectID uuid.UUID) (*task.Record, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE type = $1 AND subject_id = $2 AND status IN ('pending', 'processing')
		ORDER BY created_at DESC
		LIMIT 1
	`
	record, err := scanTask(s.db.QueryRowContext(ctx, query, taskType, subjectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.ErrTaskNotFound
		}
		return nil, MapError(err)
	}
	return record, nil
}

// ListTasks implements task.Store.ListTasks.
func (s *TaskStore) ListTasks(ctx context.Context, taskType string, limit, offset int) ([]*task.Record, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		rows *sql.Rows
		err  error
	)
	if taskType != "" {
		query := `SELECT ` + taskColumns + ` FROM tasks WHERE type = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		rows, err = s.db.QueryContext(ctx, query, taskType, limit, offset)
	} else {
		query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		rows, err = s.db.QueryContext(ctx, query, limit, offset)
	}
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var records []*task.Record
	for rows.Next() {
		record, err := scanTask(rows)
		if err != nil {
			return nil, MapError(err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return records, nil
}

// CountByStatus returns the number of task records per status.
func (s *TaskStore) CountByStatus(ctx context.Context) (map[task.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	counts := make(map[task.Status]int)
	for rows.Next() {
		var (
			status task.Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, MapError(err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return counts, nil
}

// FailActiveTasks implements task.Store.FailActiveTasks.
func (s *TaskStore) FailActiveTasks(ctx context.Context, message string) (int, error) {
	query := `
		UPDATE tasks
		SET status = 'failed', error_message = $1, completed_at = NOW()
		WHERE status IN ('pending', 'processing')
	`
	result, err := s.db.ExecContext(ctx, query, message)
	if err != nil {
		return 0, MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

// WithTx implements task.Store.WithTx.
func (s *TaskStore) WithTx(tx *sql.Tx) task.Store {
	return &TaskStore{db: tx, logger: s.logger}
}

// nullableJSON maps an empty raw message to NULL so the JSONB column stays
// NULL rather than holding an empty string, which is invalid JSON.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func scanTask(row scanner) (*task.Record, error) {
	var (
		record      task.Record
		result      []byte
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&record.ID,
		&record.Type,
		&record.SubjectID,
		&record.Status,
		&record.Progress,
		&result,
		&record.ErrorMessage,
		&record.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Result = result
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		record.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		record.CompletedAt = &t
	}

	return &record, nil
}
