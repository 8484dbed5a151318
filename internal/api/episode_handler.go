package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Zhong-Ze-Wei/podcast/internal/api/shared"
	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
	"github.com/Zhong-Ze-Wei/podcast/internal/service"
)

// EpisodeService is the slice of the episode service the handlers need.
type EpisodeService interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Episode, error)
	List(ctx context.Context, feedID *uuid.UUID, limit, offset int) ([]*domain.Episode, error)
	RequestAcquire(ctx context.Context, episodeID uuid.UUID) (uuid.UUID, error)
	RequestTranscribe(ctx context.Context, episodeID uuid.UUID) (uuid.UUID, error)
	RequestSummarize(ctx context.Context, episodeID uuid.UUID, req service.SummarizeRequest) (uuid.UUID, error)
	GetTranscript(ctx context.Context, episodeID uuid.UUID) (*domain.Transcript, error)
	DeleteTranscript(ctx context.Context, episodeID uuid.UUID) error
	ListSummaries(ctx context.Context, episodeID uuid.UUID) ([]*domain.Summary, error)
	GetSummary(ctx context.Context, episodeID uuid.UUID, templateName string) (*domain.Summary, error)
	DeleteSummary(ctx context.Context, episodeID uuid.UUID, templateName string) error
}

// SummarizeEpisodeRequest is the request body for POST .../summarize.
type SummarizeEpisodeRequest struct {
	Template      string            `json:"template"       validate:"required,min=1"`
	EnabledBlocks []string          `json:"enabled_blocks,omitempty"`
	Params        map[string]string `json:"params,omitempty"`
	Force         bool              `json:"force,omitempty"`
}

// TaskSubmittedResponse is returned by the stage request endpoints. The task
// runs asynchronously; callers poll /api/tasks/{id}.
type TaskSubmittedResponse struct {
	TaskID string `json:"task_id"`
}

// EpisodeHandler handles episode-related HTTP requests.
type EpisodeHandler struct {
	episodes EpisodeService
}

// NewEpisodeHandler creates a new EpisodeHandler.
func NewEpisodeHandler(episodes EpisodeService) *EpisodeHandler {
	return &EpisodeHandler{episodes: episodes}
}

// List handles GET /api/episodes.
func (h *EpisodeHandler) List(w http.ResponseWriter, r *http.Request) {
	var feedID *uuid.UUID
	if raw := r.URL.Query().Get("feed_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid feed_id")
			return
		}
		feedID = &id
	}

	limit, offset := paginationParams(r)
	episodes, err := h.episodes.List(r.Context(), feedID, limit, offset)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, episodes)
}

// Get handles GET /api/episodes/{id}.
func (h *EpisodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := episodeIDParam(w, r)
	if !ok {
		return
	}

	episode, err := h.episodes.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, episode)
}

// Acquire handles POST /api/episodes/{id}/acquire.
func (h *EpisodeHandler) Acquire(w http.ResponseWriter, r *http.Request) {
	id, ok := episodeIDParam(w, r)
	if !ok {
		return
	}

	taskID, err := h.episodes.RequestAcquire(r.Context(), id)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, TaskSubmittedResponse{TaskID: taskID.String()})
}

// Transcribe handles POST /api/episodes/{id}/transcribe.
func (h *EpisodeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	id, ok := episodeIDParam(w, r)
	if !ok {
		return
	}

	taskID, err := h.episodes.RequestTranscribe(r.Context(), id)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, TaskSubmittedResponse{TaskID: taskID.String()})
}

// Summarize handles POST /api/episodes/{id}/summarize.
func (h *EpisodeHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	id, ok := episodeIDParam(w, r)
	if !ok {
		return
	}

	var req SummarizeEpisodeRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, CodeInvalidRequest, "template is required")
		return
	}

	taskID, err := h.episodes.RequestSummarize(r.Context(), id, service.SummarizeRequest{
		TemplateName:  req.Template,
		EnabledBlocks: req.EnabledBlocks,
		Params:        req.Params,
		Force:         req.Force,
	})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, TaskSubmittedResponse{TaskID: taskID.String()})
}

// GetTranscript handles GET /api/episodes/{id}/transcript.
func (h *EpisodeHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	id, ok := episodeIDParam(w, r)
	if !ok {
		return
	}

	transcript, err := h.episodes.GetTranscript(r.Context(), id)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, transcript)
}

// DeleteTranscript handles DELETE /api/episodes/{id}/transcript.
func (h *EpisodeHandler) DeleteTranscript(w http.ResponseWriter, r *http.Request) {
	id, ok := episodeIDParam(w, r)
	if !ok {
		return
	}

	if err := h.episodes.DeleteTranscript(r.Context(), id); err != nil {
		WriteServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSummaries handles GET /api/episodes/{id}/summaries.
func (h *EpisodeHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	id, ok := episodeIDParam(w, r)
	if !ok {
		return
	}

	summaries, err := h.episodes.ListSummaries(r.Context(), id)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, summaries)
}

// GetSummary handles GET /api/episodes/{id}/summaries/{template}.
func (h *EpisodeHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := episodeIDParam(w, r)
	if !ok {
		return
	}

	summary, err := h.episodes.GetSummary(r.Context(), id, chi.URLParam(r, "template"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}

// DeleteSummary handles DELETE /api/episodes/{id}/summaries/{template}.
func (h *EpisodeHandler) DeleteSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := episodeIDParam(w, r)
	if !ok {
		return
	}

	if err := h.episodes.DeleteSummary(r.Context(), id, chi.URLParam(r, "template")); err != nil {
		WriteServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// episodeIDParam parses the {id} URL parameter, writing a 400 on failure.
func episodeIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid episode ID")
		return uuid.Nil, false
	}
	return id, true
}

// paginationParams reads limit/offset query parameters with defaults.
func paginationParams(r *http.Request) (limit, offset int) {
	limit = 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
