package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
	"github.com/Zhong-Ze-Wei/podcast/internal/store"
	"github.com/Zhong-Ze-Wei/podcast/internal/task"
)

func TestRequestStageGuards(t *testing.T) {
	t.Parallel()

	t.Run("wrong prior state", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		episode := h.seedEpisode(t, domain.StatusNew)

		_, err := h.svc.RequestTranscribe(context.Background(), episode.ID)

		guardErr, ok := AsGuardError(err)
		require.True(t, ok)
		assert.Equal(t, domain.ReasonWrongPriorState, guardErr.Reason)
		assert.Equal(t, domain.StageTranscribe, guardErr.Stage)
		assert.Empty(t, h.engine.submissions)
	})

	t.Run("already in progress", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		episode := h.seedEpisode(t, domain.StatusTranscribing)

		_, err := h.svc.RequestTranscribe(context.Background(), episode.ID)

		guardErr, ok := AsGuardError(err)
		require.True(t, ok)
		assert.Equal(t, domain.ReasonAlreadyInProgress, guardErr.Reason)
	})

	t.Run("already complete", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		episode := h.seedEpisode(t, domain.StatusTranscribed)

		_, err := h.svc.RequestTranscribe(context.Background(), episode.ID)

		guardErr, ok := AsGuardError(err)
		require.True(t, ok)
		assert.Equal(t, domain.ReasonAlreadyComplete, guardErr.Reason)
	})

	t.Run("error status blocks all stages", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		episode := h.seedEpisode(t, domain.StatusError)

		for _, request := range []func(context.Context, uuid.UUID) (uuid.UUID, error){
			h.svc.RequestAcquire,
			h.svc.RequestTranscribe,
		} {
			_, err := request(context.Background(), episode.ID)
			guardErr, ok := AsGuardError(err)
			require.True(t, ok)
			assert.Equal(t, domain.ReasonWrongPriorState, guardErr.Reason)
		}
	})

	t.Run("unknown episode", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		_, err := h.svc.RequestAcquire(context.Background(), uuid.New())
		assert.ErrorIs(t, err, store.ErrEpisodeNotFound)
	})
}

func TestRequestStageSubmission(t *testing.T) {
	t.Parallel()

	t.Run("writes in-progress status before submitting", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		episode := h.seedEpisode(t, domain.StatusNew)

		taskID, err := h.svc.RequestAcquire(context.Background(), episode.ID)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, taskID)

		assert.Equal(t, domain.StatusAcquiring, h.episodes.mustStatus(t, episode.ID))
		require.Len(t, h.engine.submissions, 1)
		assert.Equal(t, task.TypeAcquire, h.engine.submissions[0].taskType)
		assert.Equal(t, episode.ID, h.engine.submissions[0].subjectID)
	})

	t.Run("active task blocks resubmission", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		episode := h.seedEpisode(t, domain.StatusNew)
		h.tasks.setActive(task.TypeAcquire, episode.ID)

		_, err := h.svc.RequestAcquire(context.Background(), episode.ID)
		assert.ErrorIs(t, err, ErrTaskAlreadyRunning)
		assert.Equal(t, domain.StatusNew, h.episodes.mustStatus(t, episode.ID))
	})

	t.Run("submit failure reverts status", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		episode := h.seedEpisode(t, domain.StatusNew)
		h.engine.submitErr = task.ErrQueueFull

		_, err := h.svc.RequestAcquire(context.Background(), episode.ID)
		assert.ErrorIs(t, err, task.ErrQueueFull)
		assert.Equal(t, domain.StatusNew, h.episodes.mustStatus(t, episode.ID))
	})
}

func TestRequestSummarizeForce(t *testing.T) {
	t.Parallel()

	t.Run("summarized episode refuses without force", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		episode := h.seedEpisode(t, domain.StatusSummarized)

		_, err := h.svc.RequestSummarize(context.Background(), episode.ID, SummarizeRequest{TemplateName: "tech"})

		guardErr, ok := AsGuardError(err)
		require.True(t, ok)
		assert.Equal(t, domain.ReasonAlreadyComplete, guardErr.Reason)
	})

	t.Run("force permits regeneration", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		episode := h.seedEpisode(t, domain.StatusSummarized)

		_, err := h.svc.RequestSummarize(context.Background(), episode.ID, SummarizeRequest{
			TemplateName: "tech",
			Force:        true,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSummarizing, h.episodes.mustStatus(t, episode.ID))
	})

	t.Run("force does not bypass wrong prior state", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		episode := h.seedEpisode(t, domain.StatusNew)

		_, err := h.svc.RequestSummarize(context.Background(), episode.ID, SummarizeRequest{
			TemplateName: "tech",
			Force:        true,
		})

		guardErr, ok := AsGuardError(err)
		require.True(t, ok)
		assert.Equal(t, domain.ReasonWrongPriorState, guardErr.Reason)
	})
}

func TestDeleteTranscript(t *testing.T) {
	t.Parallel()

	t.Run("regresses status by one stage", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		episode := h.seedEpisode(t, domain.StatusTranscribed)
		transcript, err := domain.NewTranscript(episode.ID, "some text", domain.TranscriptSourceBackend)
		require.NoError(t, err)
		require.NoError(t, h.transcripts.Upsert(context.Background(), transcript))

		require.NoError(t, h.svc.DeleteTranscript(context.Background(), episode.ID))

		updated, err := h.episodes.GetByID(context.Background(), episode.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAcquired, updated.Status)
		assert.False(t, updated.HasTranscript)

		_, err = h.transcripts.GetByEpisode(context.Background(), episode.ID)
		assert.ErrorIs(t, err, store.ErrTranscriptNotFound)
	})

	t.Run("leaves unrelated status alone", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		episode := h.seedEpisode(t, domain.StatusError)
		transcript, err := domain.NewTranscript(episode.ID, "some text", domain.TranscriptSourceBackend)
		require.NoError(t, err)
		require.NoError(t, h.transcripts.Upsert(context.Background(), transcript))

		require.NoError(t, h.svc.DeleteTranscript(context.Background(), episode.ID))
		assert.Equal(t, domain.StatusError, h.episodes.mustStatus(t, episode.ID))
	})

	t.Run("missing transcript", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		episode := h.seedEpisode(t, domain.StatusTranscribed)

		err := h.svc.DeleteTranscript(context.Background(), episode.ID)
		assert.ErrorIs(t, err, store.ErrTranscriptNotFound)
	})
}

func TestDeleteSummary(t *testing.T) {
	t.Parallel()

	seedSummary := func(t *testing.T, h *episodeHarness, episodeID uuid.UUID, template string) {
		t.Helper()
		summary, err := domain.NewSummary(episodeID, template, map[string]any{"tldr": "x"})
		require.NoError(t, err)
		require.NoError(t, h.summaries.Upsert(context.Background(), summary))
	}

	t.Run("last summary regresses status", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		episode := h.seedEpisode(t, domain.StatusSummarized)
		seedSummary(t, h, episode.ID, "tech")

		require.NoError(t, h.svc.DeleteSummary(context.Background(), episode.ID, "tech"))

		updated, err := h.episodes.GetByID(context.Background(), episode.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusTranscribed, updated.Status)
		assert.False(t, updated.HasSummary)
	})

	t.Run("remaining summaries keep status", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		episode := h.seedEpisode(t, domain.StatusSummarized)
		seedSummary(t, h, episode.ID, "tech")
		seedSummary(t, h, episode.ID, "interview")

		require.NoError(t, h.svc.DeleteSummary(context.Background(), episode.ID, "tech"))

		updated, err := h.episodes.GetByID(context.Background(), episode.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSummarized, updated.Status)
	})

	t.Run("missing summary", func(t *testing.T) {
		t.Parallel()

		h := newEpisodeHarness(t)
		episode := h.seedEpisode(t, domain.StatusSummarized)

		err := h.svc.DeleteSummary(context.Background(), episode.ID, "tech")
		assert.ErrorIs(t, err, store.ErrSummaryNotFound)
	})
}

func TestEnsureNoActiveTaskStoreError(t *testing.T) {
	t.Parallel()

	h := newEpisodeHarness(t)
	episode := h.seedEpisode(t, domain.StatusNew)

	// A store failure during the exclusion check must not submit anything.
	brokenIndex := &brokenTaskIndex{err: errors.New("connection reset")}
	h.svc.tasks = brokenIndex

	_, err := h.svc.RequestAcquire(context.Background(), episode.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, task.ErrTaskNotFound)
	assert.Empty(t, h.engine.submissions)
}

type brokenTaskIndex struct {
	err error
}

func (b *brokenTaskIndex) FindActiveTask(ctx context.Context, taskType string, subjectID uuid.UUID) (*task.Record, error) {
	return nil, b.err
}
