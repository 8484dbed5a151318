package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
	"github.com/Zhong-Ze-Wei/podcast/internal/service"
	"github.com/Zhong-Ze-Wei/podcast/internal/store"
)

// mockEpisodeService is a hand-rolled mock of the EpisodeService interface.
// Unset functions return zero values.
type mockEpisodeService struct {
	GetFn               func(ctx context.Context, id uuid.UUID) (*domain.Episode, error)
	ListFn              func(ctx context.Context, feedID *uuid.UUID, limit, offset int) ([]*domain.Episode, error)
	RequestAcquireFn    func(ctx context.Context, episodeID uuid.UUID) (uuid.UUID, error)
	RequestTranscribeFn func(ctx context.Context, episodeID uuid.UUID) (uuid.UUID, error)
	RequestSummarizeFn  func(ctx context.Context, episodeID uuid.UUID, req service.SummarizeRequest) (uuid.UUID, error)
	GetTranscriptFn     func(ctx context.Context, episodeID uuid.UUID) (*domain.Transcript, error)
	DeleteTranscriptFn  func(ctx context.Context, episodeID uuid.UUID) error
	ListSummariesFn     func(ctx context.Context, episodeID uuid.UUID) ([]*domain.Summary, error)
	GetSummaryFn        func(ctx context.Context, episodeID uuid.UUID, templateName string) (*domain.Summary, error)
	DeleteSummaryFn     func(ctx context.Context, episodeID uuid.UUID, templateName string) error
}

func (m *mockEpisodeService) Get(ctx context.Context, id uuid.UUID) (*domain.Episode, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}
	return nil, store.ErrEpisodeNotFound
}

func (m *mockEpisodeService) List(ctx context.Context, feedID *uuid.UUID, limit, offset int) ([]*domain.Episode, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, feedID, limit, offset)
	}
	return nil, nil
}

func (m *mockEpisodeService) RequestAcquire(ctx context.Context, episodeID uuid.UUID) (uuid.UUID, error) {
	if m.RequestAcquireFn != nil {
		return m.RequestAcquireFn(ctx, episodeID)
	}
	return uuid.Nil, nil
}

func (m *mockEpisodeService) RequestTranscribe(ctx context.Context, episodeID uuid.UUID) (uuid.UUID, error) {
	if m.RequestTranscribeFn != nil {
		return m.RequestTranscribeFn(ctx, episodeID)
	}
	return uuid.Nil, nil
}

func (m *mockEpisodeService) RequestSummarize(
	ctx context.Context,
	episodeID uuid.UUID,
	req service.SummarizeRequest,
) (uuid.UUID, error) {
	if m.RequestSummarizeFn != nil {
		return m.RequestSummarizeFn(ctx, episodeID, req)
	}
	return uuid.Nil, nil
}

func (m *mockEpisodeService) GetTranscript(ctx context.Context, episodeID uuid.UUID) (*domain.Transcript, error) {
	if m.GetTranscriptFn != nil {
		return m.GetTranscriptFn(ctx, episodeID)
	}
	return nil, store.ErrTranscriptNotFound
}

func (m *mockEpisodeService) DeleteTranscript(ctx context.Context, episodeID uuid.UUID) error {
	if m.DeleteTranscriptFn != nil {
		return m.DeleteTranscriptFn(ctx, episodeID)
	}
	return nil
}

func (m *mockEpisodeService) ListSummaries(ctx context.Context, episodeID uuid.UUID) ([]*domain.Summary, error) {
	if m.ListSummariesFn != nil {
		return m.ListSummariesFn(ctx, episodeID)
	}
	return nil, nil
}

func (m *mockEpisodeService) GetSummary(
	ctx context.Context,
	episodeID uuid.UUID,
	templateName string,
) (*domain.Summary, error) {
	if m.GetSummaryFn != nil {
		return m.GetSummaryFn(ctx, episodeID, templateName)
	}
	return nil, store.ErrSummaryNotFound
}

func (m *mockEpisodeService) DeleteSummary(ctx context.Context, episodeID uuid.UUID, templateName string) error {
	if m.DeleteSummaryFn != nil {
		return m.DeleteSummaryFn(ctx, episodeID, templateName)
	}
	return nil
}

// withURLParams attaches chi route parameters to a request so handlers can
// read them without a full router.
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestEpisodeHandler_Get(t *testing.T) {
	t.Parallel()

	episodeID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	t.Run("returns_episode", func(t *testing.T) {
		t.Parallel()

		mock := &mockEpisodeService{
			GetFn: func(ctx context.Context, id uuid.UUID) (*domain.Episode, error) {
				assert.Equal(t, episodeID, id)
				return &domain.Episode{ID: id, Title: "Episode One", Status: domain.StatusNew}, nil
			},
		}
		handler := NewEpisodeHandler(mock)

		req := httptest.NewRequest(http.MethodGet, "/api/episodes/"+episodeID.String(), nil)
		req = withURLParams(req, map[string]string{"id": episodeID.String()})
		w := httptest.NewRecorder()
		handler.Get(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "Episode One", body["title"])
	})

	t.Run("unknown_episode_is_404", func(t *testing.T) {
		t.Parallel()

		handler := NewEpisodeHandler(&mockEpisodeService{})
		req := httptest.NewRequest(http.MethodGet, "/api/episodes/"+episodeID.String(), nil)
		req = withURLParams(req, map[string]string{"id": episodeID.String()})
		w := httptest.NewRecorder()
		handler.Get(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, CodeNotFound, decodeBody(t, w)["code"])
	})

	t.Run("malformed_id_is_400", func(t *testing.T) {
		t.Parallel()

		handler := NewEpisodeHandler(&mockEpisodeService{})
		req := httptest.NewRequest(http.MethodGet, "/api/episodes/not-a-uuid", nil)
		req = withURLParams(req, map[string]string{"id": "not-a-uuid"})
		w := httptest.NewRecorder()
		handler.Get(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, CodeInvalidRequest, decodeBody(t, w)["code"])
	})
}

func TestEpisodeHandler_List(t *testing.T) {
	t.Parallel()

	t.Run("passes_filters_and_pagination", func(t *testing.T) {
		t.Parallel()

		feedID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
		mock := &mockEpisodeService{
			ListFn: func(ctx context.Context, gotFeedID *uuid.UUID, limit, offset int) ([]*domain.Episode, error) {
				require.NotNil(t, gotFeedID)
				assert.Equal(t, feedID, *gotFeedID)
				assert.Equal(t, 10, limit)
				assert.Equal(t, 20, offset)
				return []*domain.Episode{{ID: uuid.New(), Status: domain.StatusNew}}, nil
			},
		}
		handler := NewEpisodeHandler(mock)

		req := httptest.NewRequest(http.MethodGet,
			"/api/episodes?feed_id="+feedID.String()+"&limit=10&offset=20", nil)
		w := httptest.NewRecorder()
		handler.List(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("malformed_feed_id_is_400", func(t *testing.T) {
		t.Parallel()

		handler := NewEpisodeHandler(&mockEpisodeService{})
		req := httptest.NewRequest(http.MethodGet, "/api/episodes?feed_id=nope", nil)
		w := httptest.NewRecorder()
		handler.List(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestEpisodeHandler_StageRequests(t *testing.T) {
	t.Parallel()

	episodeID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	taskID := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	t.Run("acquire_returns_accepted_with_task_id", func(t *testing.T) {
		t.Parallel()

		mock := &mockEpisodeService{
			RequestAcquireFn: func(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
				return taskID, nil
			},
		}
		handler := NewEpisodeHandler(mock)

		req := httptest.NewRequest(http.MethodPost, "/api/episodes/"+episodeID.String()+"/acquire", nil)
		req = withURLParams(req, map[string]string{"id": episodeID.String()})
		w := httptest.NewRecorder()
		handler.Acquire(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, taskID.String(), decodeBody(t, w)["task_id"])
	})

	t.Run("guard_refusal_maps_to_conflict", func(t *testing.T) {
		t.Parallel()

		mock := &mockEpisodeService{
			RequestTranscribeFn: func(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
				return uuid.Nil, &service.GuardError{
					Stage:  domain.StageTranscribe,
					Status: domain.StatusTranscribing,
					Reason: domain.ReasonAlreadyInProgress,
				}
			},
		}
		handler := NewEpisodeHandler(mock)

		req := httptest.NewRequest(http.MethodPost, "/api/episodes/"+episodeID.String()+"/transcribe", nil)
		req = withURLParams(req, map[string]string{"id": episodeID.String()})
		w := httptest.NewRecorder()
		handler.Transcribe(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, CodeAlreadyInProgress, decodeBody(t, w)["code"])
	})

	t.Run("summarize_forwards_request_fields", func(t *testing.T) {
		t.Parallel()

		var got service.SummarizeRequest
		mock := &mockEpisodeService{
			RequestSummarizeFn: func(ctx context.Context, id uuid.UUID, req service.SummarizeRequest) (uuid.UUID, error) {
				got = req
				return taskID, nil
			},
		}
		handler := NewEpisodeHandler(mock)

		payload, err := json.Marshal(SummarizeEpisodeRequest{
			Template:      "deep_dive",
			EnabledBlocks: []string{"tldr", "takeaways"},
			Params:        map[string]string{"length": "long"},
			Force:         true,
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost,
			"/api/episodes/"+episodeID.String()+"/summarize", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req = withURLParams(req, map[string]string{"id": episodeID.String()})
		w := httptest.NewRecorder()
		handler.Summarize(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "deep_dive", got.TemplateName)
		assert.Equal(t, []string{"tldr", "takeaways"}, got.EnabledBlocks)
		assert.Equal(t, "long", got.Params["length"])
		assert.True(t, got.Force)
	})

	t.Run("summarize_requires_template", func(t *testing.T) {
		t.Parallel()

		called := false
		mock := &mockEpisodeService{
			RequestSummarizeFn: func(ctx context.Context, id uuid.UUID, req service.SummarizeRequest) (uuid.UUID, error) {
				called = true
				return taskID, nil
			},
		}
		handler := NewEpisodeHandler(mock)

		req := httptest.NewRequest(http.MethodPost,
			"/api/episodes/"+episodeID.String()+"/summarize", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")
		req = withURLParams(req, map[string]string{"id": episodeID.String()})
		w := httptest.NewRecorder()
		handler.Summarize(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, called)
	})
}

func TestEpisodeHandler_Artifacts(t *testing.T) {
	t.Parallel()

	episodeID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	t.Run("delete_transcript_returns_no_content", func(t *testing.T) {
		t.Parallel()

		deleted := false
		mock := &mockEpisodeService{
			DeleteTranscriptFn: func(ctx context.Context, id uuid.UUID) error {
				deleted = true
				return nil
			},
		}
		handler := NewEpisodeHandler(mock)

		req := httptest.NewRequest(http.MethodDelete, "/api/episodes/"+episodeID.String()+"/transcript", nil)
		req = withURLParams(req, map[string]string{"id": episodeID.String()})
		w := httptest.NewRecorder()
		handler.DeleteTranscript(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.True(t, deleted)
	})

	t.Run("get_summary_passes_template_name", func(t *testing.T) {
		t.Parallel()

		mock := &mockEpisodeService{
			GetSummaryFn: func(ctx context.Context, id uuid.UUID, templateName string) (*domain.Summary, error) {
				assert.Equal(t, "deep_dive", templateName)
				return &domain.Summary{EpisodeID: id, TemplateName: templateName}, nil
			},
		}
		handler := NewEpisodeHandler(mock)

		req := httptest.NewRequest(http.MethodGet,
			"/api/episodes/"+episodeID.String()+"/summaries/deep_dive", nil)
		req = withURLParams(req, map[string]string{"id": episodeID.String(), "template": "deep_dive"})
		w := httptest.NewRecorder()
		handler.GetSummary(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "deep_dive", decodeBody(t, w)["template_name"])
	})

	t.Run("missing_summary_is_404", func(t *testing.T) {
		t.Parallel()

		handler := NewEpisodeHandler(&mockEpisodeService{})
		req := httptest.NewRequest(http.MethodGet,
			"/api/episodes/"+episodeID.String()+"/summaries/deep_dive", nil)
		req = withURLParams(req, map[string]string{"id": episodeID.String(), "template": "deep_dive"})
		w := httptest.NewRecorder()
		handler.GetSummary(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
