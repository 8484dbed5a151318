package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Zhong-Ze-Wei/podcast/internal/api/shared"
	"github.com/Zhong-Ze-Wei/podcast/internal/task"
)

// TaskEngine is the slice of the engine the task endpoints need.
type TaskEngine interface {
	// GetStatus retrieves the current record for a task.
	GetStatus(ctx context.Context, id uuid.UUID) (*task.Record, error)

	// Cancel cancels a pending task.
	Cancel(ctx context.Context, id uuid.UUID) error
}

// TaskLister lists persisted task records.
type TaskLister interface {
	ListTasks(ctx context.Context, taskType string, limit, offset int) ([]*task.Record, error)
}

// TaskHandler handles task status polling, listing, and cancellation.
type TaskHandler struct {
	engine TaskEngine
	lister TaskLister
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(engine TaskEngine, lister TaskLister) *TaskHandler {
	return &TaskHandler{engine: engine, lister: lister}
}

// Get handles GET /api/tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid task ID")
		return
	}

	record, err := h.engine.GetStatus(r.Context(), id)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, record)
}

// List handles GET /api/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r)
	records, err := h.lister.ListTasks(r.Context(), r.URL.Query().Get("type"), limit, offset)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, records)
}

// Cancel handles POST /api/tasks/{id}/cancel.
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid task ID")
		return
	}

	if err := h.engine.Cancel(r.Context(), id); err != nil {
		WriteServiceError(w, r, err)
		return
	}

	record, err := h.engine.GetStatus(r.Context(), id)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, record)
}
