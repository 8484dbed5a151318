package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config holds configuration for the task engine
type Config struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		WorkerCount: 3,
		QueueSize:   100,
	}
}

// submission pairs a task record with the closure that does its work. The
// record itself lives in the engine's in-memory table.
type submission struct {
	id  uuid.UUID
	job Job
}

// Engine manages background task processing. Task records are held in memory
// for the lifetime of the process and written through to the store; polling
// reads hit memory first so progress is visible even when the database lags.
type Engine struct {
	store      Store
	taskChan   chan submission
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     Config
	logger     *slog.Logger

	mu      sync.RWMutex
	records map[uuid.UUID]*Record
	stopped bool
}

// NewEngine creates a new Engine. Zero config values fall back to defaults.
func NewEngine(store Store, config Config, logger *slog.Logger) *Engine {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		store:      store,
		taskChan:   make(chan submission, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		records:    make(map[uuid.UUID]*Record),
	}
}

// Start sweeps records stranded by a previous run and launches the worker
// pool. Jobs are closures and cannot be reconstructed after a restart, so
// stale active records are marked failed rather than requeued.
func (e *Engine) Start() error {
	swept, err := e.store.FailActiveTasks(e.ctx, "interrupted by restart")
	if err != nil {
		return fmt.Errorf("failed to sweep stale tasks: %w", err)
	}
	if swept > 0 {
		e.logger.Info("marked stale tasks as failed", "count", swept)
	}

	for i := 0; i < e.config.WorkerCount; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}

	return nil
}

// Submit registers a job of the given type for the subject and queues it for
// execution. The returned ID is available to the caller before the job runs.
// Returns ErrQueueFull when the queue cannot accept the task; the record is
// marked failed so no pending entry lingers.
func (e *Engine) Submit(ctx context.Context, taskType string, subjectID uuid.UUID, job Job) (uuid.UUID, error) {
	record := &Record{
		ID:        uuid.New(),
		Type:      taskType,
		SubjectID: subjectID,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return uuid.Nil, ErrEngineStopped
	}
	e.records[record.ID] = record
	e.mu.Unlock()

	if err := e.store.CreateTask(ctx, record); err != nil {
		e.mu.Lock()
		delete(e.records, record.ID)
		e.mu.Unlock()
		return uuid.Nil, fmt.Errorf("failed to save task: %w", err)
	}

	select {
	case e.taskChan <- submission{id: record.ID, job: job}:
		return record.ID, nil
	default:
		e.markFailed(record.ID, "task queue is full")
		return uuid.Nil, ErrQueueFull
	}
}

// GetStatus returns the current record for a task. The in-memory table is
// consulted first; records from earlier runs are served from the store.
// Returns ErrTaskNotFound if the task does not exist in either place.
func (e *Engine) GetStatus(ctx context.Context, id uuid.UUID) (*Record, error) {
	e.mu.RLock()
	record, ok := e.records[id]
	if ok {
		snapshot := *record
		e.mu.RUnlock()
		return &snapshot, nil
	}
	e.mu.RUnlock()

	return e.store.GetTask(ctx, id)
}

// Cancel marks a pending task as failed so workers skip it at dispatch.
// Tasks that have already started are past the point of cancellation.
// Returns ErrTaskNotFound for unknown IDs and ErrNotCancellable for tasks
// that are no longer pending.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID) error {
	e.mu.Lock()
	record, ok := e.records[id]
	if !ok {
		e.mu.Unlock()
		return ErrTaskNotFound
	}
	if record.Status != StatusPending {
		e.mu.Unlock()
		return ErrNotCancellable
	}
	now := time.Now().UTC()
	record.Status = StatusFailed
	record.ErrorMessage = "cancelled by user"
	record.CompletedAt = &now
	snapshot := *record
	e.mu.Unlock()

	e.persist(&snapshot)
	return nil
}

// Shutdown stops accepting submissions, cancels the run context, and waits
// for in-flight workers to finish or the given context to expire.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	e.cancelFunc()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("task engine shutdown timed out: %w", ctx.Err())
	}
}

// worker processes tasks from the queue
func (e *Engine) worker(id int) {
	defer e.wg.Done()

	e.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Debug("stopping worker", "worker_id", id)
			return

		case sub, ok := <-e.taskChan:
			if !ok {
				e.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			e.run(sub, id)
		}
	}
}

// run executes a single submission
func (e *Engine) run(sub submission, workerID int) {
	e.mu.Lock()
	record, ok := e.records[sub.id]
	if !ok || record.Status != StatusPending {
		// Cancelled between submission and dispatch.
		e.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	record.Status = StatusProcessing
	record.StartedAt = &now
	snapshot := *record
	e.mu.Unlock()

	logger := e.logger.With(
		"task_id", snapshot.ID,
		"task_type", snapshot.Type,
		"worker_id", workerID,
	)

	e.persist(&snapshot)
	logger.Info("processing task")

	result, err := e.execute(sub.id, sub.job)

	e.mu.Lock()
	record, ok = e.records[sub.id]
	if !ok {
		e.mu.Unlock()
		return
	}
	finished := time.Now().UTC()
	record.CompletedAt = &finished
	if err != nil {
		record.Status = StatusFailed
		record.ErrorMessage = err.Error()
	} else {
		record.Status = StatusCompleted
		record.Progress = 100
		if result != nil {
			if encoded, encErr := json.Marshal(result); encErr != nil {
				logger.Error("failed to encode task result", "error", encErr)
			} else {
				record.Result = encoded
			}
		}
	}
	snapshot = *record
	e.mu.Unlock()

	e.persist(&snapshot)

	if err != nil {
		logger.Error("task execution failed", "error", err)
	} else {
		logger.Info("task completed successfully")
	}
}

// execute runs the job with panic recovery and a progress callback bound to
// the task's record.
func (e *Engine) execute(id uuid.UUID, job Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	return job(e.ctx, e.progressFunc(id))
}

// progressFunc returns a callback that clamps the reported percentage,
// updates the in-memory record, and writes it through to the store. Store
// failures only get logged; the in-memory counter keeps advancing.
func (e *Engine) progressFunc(id uuid.UUID) ProgressFunc {
	return func(percent int) {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}

		e.mu.Lock()
		record, ok := e.records[id]
		if !ok || record.Status != StatusProcessing {
			e.mu.Unlock()
			return
		}
		record.Progress = percent
		e.mu.Unlock()

		if err := e.store.UpdateProgress(e.ctx, id, percent); err != nil {
			e.logger.Error("failed to persist task progress",
				"task_id", id,
				"progress", percent,
				"error", err)
		}
	}
}

// markFailed flips an in-memory record to failed and writes it through.
func (e *Engine) markFailed(id uuid.UUID, message string) {
	e.mu.Lock()
	record, ok := e.records[id]
	if !ok {
		e.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	record.Status = StatusFailed
	record.ErrorMessage = message
	record.CompletedAt = &now
	snapshot := *record
	e.mu.Unlock()

	e.persist(&snapshot)
}

// persist writes a record snapshot to the store. Persistence failures are
// logged and swallowed; the in-memory table remains authoritative for this
// process.
func (e *Engine) persist(record *Record) {
	if err := e.store.UpdateTask(context.Background(), record); err != nil {
		e.logger.Error("failed to persist task record",
			"task_id", record.ID,
			"status", record.Status,
			"error", err)
	}
}
