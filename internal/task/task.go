package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a task
type Status string

// Possible task status values
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Task type constants
const (
	// TypeAcquire represents audio acquisition for an episode
	TypeAcquire = "acquire"

	// TypeTranscribe represents transcription of acquired audio
	TypeTranscribe = "transcribe"

	// TypeSummarize represents structured summarization of a transcript
	TypeSummarize = "summarize"

	// TypeFeedRefresh represents fetching a feed and ingesting new episodes
	TypeFeedRefresh = "feed_refresh"
)

// Common task errors
var (
	// ErrTaskNotFound is returned when no task exists with the given ID.
	ErrTaskNotFound = errors.New("task not found")

	// ErrQueueFull is returned by Submit when the in-memory queue cannot
	// accept another task.
	ErrQueueFull = errors.New("task queue is full, try again later")

	// ErrNotCancellable is returned by Cancel for tasks that have already
	// started or finished. Only pending tasks can be cancelled.
	ErrNotCancellable = errors.New("task is not pending and cannot be cancelled")

	// ErrEngineStopped is returned by Submit after Shutdown has begun.
	ErrEngineStopped = errors.New("task engine is stopped")
)

// IsTerminal reports whether the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record is the observable state of one submitted task. Callers poll it via
// Engine.GetStatus; workers update it as the job runs.
type Record struct {
	ID           uuid.UUID       `json:"id"`
	Type         string          `json:"type"`
	SubjectID    uuid.UUID       `json:"subject_id"`
	Status       Status          `json:"status"`
	Progress     int             `json:"progress"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// ProgressFunc reports job completion in percent. Values outside 0-100 are
// clamped by the engine.
type ProgressFunc func(percent int)

// Job is the unit of background work. It receives the engine's run context
// and a progress callback; the returned value is serialized into the task
// record's Result on success.
type Job func(ctx context.Context, progress ProgressFunc) (any, error)

// Store defines the interface for persisting task records
type Store interface {
	// CreateTask persists a new task record
	CreateTask(ctx context.Context, record *Record) error

	// UpdateTask persists the record's current status, progress, result,
	// error message, and timestamps.
	// Returns ErrTaskNotFound if the record does not exist.
	UpdateTask(ctx context.Context, record *Record) error

	// UpdateProgress persists only the progress counter.
	// Returns ErrTaskNotFound if the record does not exist.
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error

	// GetTask retrieves a task record by ID.
	// Returns ErrTaskNotFound if the record does not exist.
	GetTask(ctx context.Context, id uuid.UUID) (*Record, error)

	// FindActiveTask retrieves the pending or processing task of the given
	// type for a subject, if any.
	// Returns ErrTaskNotFound if no active task exists.
	FindActiveTask(ctx context.Context, taskType string, subjectID uuid.UUID) (*Record, error)

	// ListTasks retrieves task records newest first. An empty taskType
	// matches all types.
	ListTasks(ctx context.Context, taskType string, limit, offset int) ([]*Record, error)

	// FailActiveTasks marks every pending or processing record as failed
	// with the given message. Used at startup to clear records stranded by
	// a previous run. Returns the number of records updated.
	FailActiveTasks(ctx context.Context, message string) (int, error)

	// WithTx returns a new Store instance that uses the provided transaction.
	WithTx(tx *sql.Tx) Store
}
