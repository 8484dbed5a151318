package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
	"github.com/Zhong-Ze-Wei/podcast/internal/media"
	"github.com/Zhong-Ze-Wei/podcast/internal/summarize"
	"github.com/Zhong-Ze-Wei/podcast/internal/task"
	"github.com/Zhong-Ze-Wei/podcast/internal/transcription"
)

// failureCategory distinguishes the two ways a stage job can fail. Both
// revert the episode to the stage's entry status; the category records
// whether retrying needs a fix first.
type failureCategory string

const (
	// failurePrecondition means a prerequisite for the stage was missing
	// (no audio URL, no transcript, no backend). Retrying only helps once
	// the prerequisite exists.
	failurePrecondition failureCategory = "precondition"

	// failureExecution means the stage's work itself failed, typically a
	// transient external fault (dropped download, backend timeout,
	// exhausted model retries). The request can simply be repeated.
	failureExecution failureCategory = "execution"
)

// stageOutcome is the explicit result of one stage job body. Exactly one of
// result or failure is set. The single finishStage handler consumes it and
// performs the episode status write, keeping "did the job run" separate from
// "what happens to the episode".
type stageOutcome struct {
	result  any
	failure *stageFailure
}

type stageFailure struct {
	category failureCategory
	err      error
}

func stageSuccess(result any) stageOutcome {
	return stageOutcome{result: result}
}

func preconditionFailure(err error) stageOutcome {
	return stageOutcome{failure: &stageFailure{category: failurePrecondition, err: err}}
}

func executionFailure(err error) stageOutcome {
	return stageOutcome{failure: &stageFailure{category: failureExecution, err: err}}
}

// stageRunner is one stage's job body: it does the stage's work against a
// loaded episode and reports the outcome. It never writes the episode status.
type stageRunner func(ctx context.Context, episode *domain.Episode, progress task.ProgressFunc) stageOutcome

// stageJob wraps a stageRunner into a task.Job: reload the episode, verify it
// still holds the stage's in-progress status, run, and finish.
func (s *EpisodeService) stageJob(stage domain.Stage, episodeID uuid.UUID, run stageRunner) task.Job {
	return func(ctx context.Context, progress task.ProgressFunc) (any, error) {
		episode, err := s.episodes.GetByID(ctx, episodeID)
		if err != nil {
			return nil, fmt.Errorf("failed to load episode: %w", err)
		}

		var outcome stageOutcome
		if episode.Status != stage.RunningStatus() {
			outcome = preconditionFailure(fmt.Errorf(
				"episode status changed to %q before the %s job ran", episode.Status, stage))
		} else {
			outcome = run(ctx, episode, progress)
		}

		return s.finishStage(ctx, stage, episode, outcome)
	}
}

// finishStage performs the single episode status write for a completed stage
// job: exit status on success, entry status on any failure. Failures never
// park the episode in a dead-end status; the failed request stays retryable
// and the failure itself is visible on the task record.
func (s *EpisodeService) finishStage(ctx context.Context, stage domain.Stage, episode *domain.Episode, outcome stageOutcome) (any, error) {
	if outcome.failure != nil {
		next := stage.EntryStatus()

		if err := s.episodes.UpdateStatus(ctx, episode.ID, next); err != nil {
			s.logger.Error("failed to update episode status after stage failure",
				"episode_id", episode.ID,
				"stage", stage,
				"status", next,
				"error", err)
		}

		s.logger.Warn("stage job failed",
			"episode_id", episode.ID,
			"stage", stage,
			"category", outcome.failure.category,
			"error", outcome.failure.err)
		return nil, outcome.failure.err
	}

	if err := s.episodes.UpdateStatus(ctx, episode.ID, stage.ExitStatus()); err != nil {
		return nil, fmt.Errorf("stage %s succeeded but the status update failed: %w", stage, err)
	}

	s.logger.Info("stage job completed",
		"episode_id", episode.ID,
		"stage", stage,
		"status", stage.ExitStatus())
	return outcome.result, nil
}

// runAcquire downloads the episode audio to local storage.
func (s *EpisodeService) runAcquire(ctx context.Context, episode *domain.Episode, progress task.ProgressFunc) stageOutcome {
	if episode.AudioURL == "" {
		return preconditionFailure(media.ErrNoAudioURL)
	}

	result, err := s.audio.Fetch(ctx, episode.ID, episode.AudioURL, media.ProgressFunc(progress))
	if err != nil {
		return executionFailure(fmt.Errorf("audio download failed: %w", err))
	}

	if err := s.episodes.SetAudioPath(ctx, episode.ID, result.Path); err != nil {
		return executionFailure(fmt.Errorf("failed to record audio path: %w", err))
	}

	return stageSuccess(map[string]any{
		"audio_path": result.Path,
		"bytes":      result.Bytes,
	})
}

// runTranscribe produces and stores a transcript. A published transcript
// linked from the feed is preferred; the transcription backend is the
// fallback.
func (s *EpisodeService) runTranscribe(ctx context.Context, episode *domain.Episode, progress task.ProgressFunc) stageOutcome {
	var result *transcription.Result

	if episode.TranscriptURL != "" && s.official != nil {
		fetched, err := s.official.Fetch(ctx, episode.TranscriptURL)
		if err != nil {
			s.logger.Warn("published transcript unusable, falling back to backend",
				"episode_id", episode.ID,
				"url", episode.TranscriptURL,
				"error", err)
		} else {
			result = fetched
			progress(80)
		}
	}

	if result == nil {
		if s.transcriber == nil {
			return preconditionFailure(transcription.ErrBackendDisabled)
		}
		if episode.AudioPath == "" {
			return preconditionFailure(errors.New("episode has no acquired audio file"))
		}

		transcribed, err := s.transcriber.Transcribe(ctx, episode.AudioPath, transcription.ProgressFunc(progress))
		if err != nil {
			return executionFailure(fmt.Errorf("transcription failed: %w", err))
		}
		result = transcribed
	}

	transcript, err := domain.NewTranscript(episode.ID, result.Text, result.Source)
	if err != nil {
		return executionFailure(err)
	}
	transcript.Segments = result.Segments
	transcript.Language = result.Language

	if err := s.transcripts.Upsert(ctx, transcript); err != nil {
		return executionFailure(fmt.Errorf("failed to store transcript: %w", err))
	}
	if err := s.episodes.SetHasTranscript(ctx, episode.ID, true); err != nil {
		return executionFailure(fmt.Errorf("failed to flag transcript presence: %w", err))
	}

	return stageSuccess(map[string]any{
		"word_count": transcript.WordCount,
		"source":     transcript.Source,
		"language":   transcript.Language,
	})
}

// runSummarize generates and stores a structured summary from the episode's
// transcript.
func (s *EpisodeService) runSummarize(ctx context.Context, episode *domain.Episode, req SummarizeRequest, progress task.ProgressFunc) stageOutcome {
	transcript, err := s.transcripts.GetByEpisode(ctx, episode.ID)
	if err != nil {
		return preconditionFailure(fmt.Errorf("episode has no transcript: %w", err))
	}

	progress(10)

	result, err := s.summarizer.Summarize(ctx, transcript.Text, summarize.Request{
		TemplateName:  req.TemplateName,
		EnabledBlocks: req.EnabledBlocks,
		Params:        req.Params,
		Title:         episode.Title,
	})
	if err != nil {
		return executionFailure(fmt.Errorf("summarization failed: %w", err))
	}

	progress(90)

	summary, err := domain.NewSummary(episode.ID, result.TemplateName, result.Fields)
	if err != nil {
		return executionFailure(err)
	}
	summary.EnabledBlocks = result.EnabledBlocks
	summary.Params = req.Params
	summary.RawOutput = result.RawOutput
	summary.Model = result.Model
	summary.TokensUsed = domain.TokenUsage{
		Prompt:     result.Usage.PromptTokens,
		Completion: result.Usage.CompletionTokens,
		Total:      result.Usage.TotalTokens,
	}
	summary.GenerationSeconds = result.Elapsed.Seconds()

	if err := s.summaries.Upsert(ctx, summary); err != nil {
		return executionFailure(fmt.Errorf("failed to store summary: %w", err))
	}
	if err := s.episodes.SetHasSummary(ctx, episode.ID, true); err != nil {
		return executionFailure(fmt.Errorf("failed to flag summary presence: %w", err))
	}

	return stageSuccess(map[string]any{
		"template": summary.TemplateName,
		"lenient":  result.Lenient,
		"attempts": result.Attempts,
	})
}
