package task_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhong-Ze-Wei/podcast/internal/task"
)

// mockStore is an in-memory task.Store with overridable behavior per method.
type mockStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*task.Record

	createTaskFn func(ctx context.Context, record *task.Record) error
	updateTaskFn func(ctx context.Context, record *task.Record) error
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[uuid.UUID]*task.Record)}
}

func (m *mockStore) CreateTask(ctx context.Context, record *task.Record) error {
	if m.createTaskFn != nil {
		return m.createTaskFn(ctx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *record
	m.records[record.ID] = &clone
	return nil
}

func (m *mockStore) UpdateTask(ctx context.Context, record *task.Record) error {
	if m.updateTaskFn != nil {
		return m.updateTaskFn(ctx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.ID]; !ok {
		return task.ErrTaskNotFound
	}
	clone := *record
	m.records[record.ID] = &clone
	return nil
}

func (m *mockStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return task.ErrTaskNotFound
	}
	record.Progress = progress
	return nil
}

func (m *mockStore) GetTask(ctx context.Context, id uuid.UUID) (*task.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return nil, task.ErrTaskNotFound
	}
	clone := *record
	return &clone, nil
}

func (m *mockStore) FindActiveTask(ctx context.Context, taskType string, subjectID uuid.UUID) (*task.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.records {
		if record.Type == taskType && record.SubjectID == subjectID && !record.Status.IsTerminal() {
			clone := *record
			return &clone, nil
		}
	}
	return nil, task.ErrTaskNotFound
}

func (m *mockStore) ListTasks(ctx context.Context, taskType string, limit, offset int) ([]*task.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*task.Record
	for _, record := range m.records {
		if taskType == "" || record.Type == taskType {
			clone := *record
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *mockStore) FailActiveTasks(ctx context.Context, message string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, record := range m.records {
		if !record.Status.IsTerminal() {
			record.Status = task.StatusFailed
			record.ErrorMessage = message
			count++
		}
	}
	return count, nil
}

func (m *mockStore) WithTx(tx *sql.Tx) task.Store { return m }

func (m *mockStore) stored(id uuid.UUID) *task.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return nil
	}
	clone := *record
	return &clone
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startedEngine(t *testing.T, store task.Store, config task.Config) *task.Engine {
	t.Helper()
	engine := task.NewEngine(store, config, testLogger())
	require.NoError(t, engine.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = engine.Shutdown(ctx)
	})
	return engine
}

func waitForTerminal(t *testing.T, engine *task.Engine, id uuid.UUID) *task.Record {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		record, err := engine.GetStatus(context.Background(), id)
		require.NoError(t, err)
		if record.Status.IsTerminal() {
			return record
		}
		select {
		case <-deadline:
			t.Fatalf("task %s never reached a terminal status (last: %s)", id, record.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestEngineRunsSubmittedJob(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	engine := startedEngine(t, store, task.Config{WorkerCount: 1, QueueSize: 10})

	subjectID := uuid.New()
	id, err := engine.Submit(context.Background(), task.TypeAcquire, subjectID,
		func(ctx context.Context, progress task.ProgressFunc) (any, error) {
			progress(50)
			return map[string]string{"path": "/tmp/audio.mp3"}, nil
		})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	record := waitForTerminal(t, engine, id)
	assert.Equal(t, task.StatusCompleted, record.Status)
	assert.Equal(t, 100, record.Progress)
	assert.Equal(t, subjectID, record.SubjectID)
	assert.JSONEq(t, `{"path":"/tmp/audio.mp3"}`, string(record.Result))
	assert.NotNil(t, record.StartedAt)
	assert.NotNil(t, record.CompletedAt)

	// The terminal state is written through to the store.
	persisted := store.stored(id)
	require.NotNil(t, persisted)
	assert.Equal(t, task.StatusCompleted, persisted.Status)
}

func TestEngineRecordsJobFailure(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	engine := startedEngine(t, store, task.Config{WorkerCount: 1, QueueSize: 10})

	id, err := engine.Submit(context.Background(), task.TypeTranscribe, uuid.New(),
		func(ctx context.Context, progress task.ProgressFunc) (any, error) {
			return nil, errors.New("audio file missing")
		})
	require.NoError(t, err)

	record := waitForTerminal(t, engine, id)
	assert.Equal(t, task.StatusFailed, record.Status)
	assert.Equal(t, "audio file missing", record.ErrorMessage)
}

func TestEngineRecoversFromPanic(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	engine := startedEngine(t, store, task.Config{WorkerCount: 1, QueueSize: 10})

	id, err := engine.Submit(context.Background(), task.TypeSummarize, uuid.New(),
		func(ctx context.Context, progress task.ProgressFunc) (any, error) {
			panic("boom")
		})
	require.NoError(t, err)

	record := waitForTerminal(t, engine, id)
	assert.Equal(t, task.StatusFailed, record.Status)
	assert.Contains(t, record.ErrorMessage, "boom")

	// The worker survives the panic and runs the next job.
	next, err := engine.Submit(context.Background(), task.TypeSummarize, uuid.New(),
		func(ctx context.Context, progress task.ProgressFunc) (any, error) {
			return nil, nil
		})
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, waitForTerminal(t, engine, next).Status)
}

func TestEngineClampsProgress(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	engine := startedEngine(t, store, task.Config{WorkerCount: 1, QueueSize: 10})

	release := make(chan struct{})
	reported := make(chan struct{})
	id, err := engine.Submit(context.Background(), task.TypeAcquire, uuid.New(),
		func(ctx context.Context, progress task.ProgressFunc) (any, error) {
			progress(150)
			close(reported)
			<-release
			return nil, nil
		})
	require.NoError(t, err)

	<-reported
	record, err := engine.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 100, record.Progress)
	assert.Equal(t, task.StatusProcessing, record.Status)

	close(release)
	waitForTerminal(t, engine, id)
}

func TestEngineCancel(t *testing.T) {
	t.Parallel()

	t.Run("pending task is cancelled and skipped", func(t *testing.T) {
		t.Parallel()

		store := newMockStore()
		// No Start: with no workers running, submissions stay pending.
		engine := task.NewEngine(store, task.Config{WorkerCount: 1, QueueSize: 10}, testLogger())

		executed := make(chan struct{})
		id, err := engine.Submit(context.Background(), task.TypeAcquire, uuid.New(),
			func(ctx context.Context, progress task.ProgressFunc) (any, error) {
				close(executed)
				return nil, nil
			})
		require.NoError(t, err)

		require.NoError(t, engine.Cancel(context.Background(), id))

		record, err := engine.GetStatus(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, task.StatusFailed, record.Status)
		assert.Equal(t, "cancelled by user", record.ErrorMessage)

		// Workers started after the cancel skip the submission.
		require.NoError(t, engine.Start())
		select {
		case <-executed:
			t.Fatal("cancelled job must not run")
		case <-time.After(100 * time.Millisecond):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, engine.Shutdown(ctx))
	})

	t.Run("running task cannot be cancelled", func(t *testing.T) {
		t.Parallel()

		store := newMockStore()
		engine := startedEngine(t, store, task.Config{WorkerCount: 1, QueueSize: 10})

		started := make(chan struct{})
		release := make(chan struct{})
		id, err := engine.Submit(context.Background(), task.TypeAcquire, uuid.New(),
			func(ctx context.Context, progress task.ProgressFunc) (any, error) {
				close(started)
				<-release
				return nil, nil
			})
		require.NoError(t, err)

		<-started
		assert.ErrorIs(t, engine.Cancel(context.Background(), id), task.ErrNotCancellable)
		close(release)
		waitForTerminal(t, engine, id)
	})

	t.Run("unknown task", func(t *testing.T) {
		t.Parallel()

		engine := startedEngine(t, newMockStore(), task.Config{})
		assert.ErrorIs(t, engine.Cancel(context.Background(), uuid.New()), task.ErrTaskNotFound)
	})
}

func TestEngineSubmitQueueFull(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	// No workers pulling from the queue.
	engine := task.NewEngine(store, task.Config{WorkerCount: 1, QueueSize: 1}, testLogger())

	noop := func(ctx context.Context, progress task.ProgressFunc) (any, error) { return nil, nil }

	_, err := engine.Submit(context.Background(), task.TypeAcquire, uuid.New(), noop)
	require.NoError(t, err)

	id, err := engine.Submit(context.Background(), task.TypeAcquire, uuid.New(), noop)
	assert.ErrorIs(t, err, task.ErrQueueFull)
	assert.Equal(t, uuid.Nil, id)
}

func TestEngineSubmitPersistFailure(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.createTaskFn = func(ctx context.Context, record *task.Record) error {
		return errors.New("connection refused")
	}
	engine := task.NewEngine(store, task.Config{}, testLogger())

	id, err := engine.Submit(context.Background(), task.TypeAcquire, uuid.New(),
		func(ctx context.Context, progress task.ProgressFunc) (any, error) { return nil, nil })
	require.Error(t, err)
	assert.Equal(t, uuid.Nil, id)

	// The record must not linger in memory after a failed submit.
	_, err = engine.GetStatus(context.Background(), id)
	assert.ErrorIs(t, err, task.ErrTaskNotFound)
}

func TestEngineStoreFailuresDoNotStopExecution(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.updateTaskFn = func(ctx context.Context, record *task.Record) error {
		return errors.New("connection refused")
	}
	engine := startedEngine(t, store, task.Config{WorkerCount: 1, QueueSize: 10})

	id, err := engine.Submit(context.Background(), task.TypeAcquire, uuid.New(),
		func(ctx context.Context, progress task.ProgressFunc) (any, error) {
			return "ok", nil
		})
	require.NoError(t, err)

	// In-memory state still reaches completed even though every write-through
	// fails.
	record := waitForTerminal(t, engine, id)
	assert.Equal(t, task.StatusCompleted, record.Status)
}

func TestEngineStartSweepsStaleTasks(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	stale := &task.Record{
		ID:        uuid.New(),
		Type:      task.TypeTranscribe,
		SubjectID: uuid.New(),
		Status:    task.StatusProcessing,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, store.CreateTask(context.Background(), stale))

	startedEngine(t, store, task.Config{})

	persisted := store.stored(stale.ID)
	require.NotNil(t, persisted)
	assert.Equal(t, task.StatusFailed, persisted.Status)
	assert.Equal(t, "interrupted by restart", persisted.ErrorMessage)
}

func TestEngineSubmitAfterShutdown(t *testing.T) {
	t.Parallel()

	engine := task.NewEngine(newMockStore(), task.Config{}, testLogger())
	require.NoError(t, engine.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, engine.Shutdown(ctx))

	_, err := engine.Submit(context.Background(), task.TypeAcquire, uuid.New(),
		func(ctx context.Context, progress task.ProgressFunc) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, task.ErrEngineStopped)
}
