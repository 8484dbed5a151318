package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Zhong-Ze-Wei/podcast/internal/api/shared"
	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
)

// FeedService is the slice of the feed service the handlers need.
type FeedService interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Feed, error)
	List(ctx context.Context) ([]*domain.Feed, error)
	Add(ctx context.Context, url string) (*domain.Feed, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Refresh(ctx context.Context, feedID uuid.UUID) (uuid.UUID, error)
}

// AddFeedRequest is the request body for POST /api/feeds.
type AddFeedRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// FeedHandler handles feed subscription HTTP requests.
type FeedHandler struct {
	feeds FeedService
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(feeds FeedService) *FeedHandler {
	return &FeedHandler{feeds: feeds}
}

// List handles GET /api/feeds.
func (h *FeedHandler) List(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.feeds.List(r.Context())
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, feeds)
}

// Get handles GET /api/feeds/{id}.
func (h *FeedHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := feedIDParam(w, r)
	if !ok {
		return
	}

	feed, err := h.feeds.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, feed)
}

// Add handles POST /api/feeds.
func (h *FeedHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddFeedRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, CodeInvalidRequest, "a valid feed url is required")
		return
	}

	feed, err := h.feeds.Add(r.Context(), req.URL)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, feed)
}

// Delete handles DELETE /api/feeds/{id}.
func (h *FeedHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := feedIDParam(w, r)
	if !ok {
		return
	}

	if err := h.feeds.Delete(r.Context(), id); err != nil {
		WriteServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Refresh handles POST /api/feeds/{id}/refresh.
func (h *FeedHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id, ok := feedIDParam(w, r)
	if !ok {
		return
	}

	taskID, err := h.feeds.Refresh(r.Context(), id)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, TaskSubmittedResponse{TaskID: taskID.String()})
}

func feedIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid feed ID")
		return uuid.Nil, false
	}
	return id, true
}
