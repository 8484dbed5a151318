// Package service combines the episode state machine, the task engine, and
// the stage collaborators into the pipeline orchestrators.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
	"github.com/Zhong-Ze-Wei/podcast/internal/media"
	"github.com/Zhong-Ze-Wei/podcast/internal/store"
	"github.com/Zhong-Ze-Wei/podcast/internal/summarize"
	"github.com/Zhong-Ze-Wei/podcast/internal/task"
	"github.com/Zhong-Ze-Wei/podcast/internal/transcription"
)

// TaskEngine defines the interface for submitting background jobs.
type TaskEngine interface {
	// Submit persists a pending task record and enqueues the job.
	Submit(ctx context.Context, taskType string, subjectID uuid.UUID, job task.Job) (uuid.UUID, error)
}

// TaskIndex defines the lookup used for the active-task exclusion check.
type TaskIndex interface {
	// FindActiveTask retrieves the pending or processing task of the given
	// type for the subject. Returns task.ErrTaskNotFound if none exists.
	FindActiveTask(ctx context.Context, taskType string, subjectID uuid.UUID) (*task.Record, error)
}

// TranscriptFetcher downloads a published transcript referenced by the feed.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, url string) (*transcription.Result, error)
}

// Summarizer produces a structured summary from a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string, req summarize.Request) (*summarize.Result, error)
}

// SummarizeRequest carries the caller's options for the summarize stage.
type SummarizeRequest struct {
	// TemplateName selects the stored prompt template.
	TemplateName string

	// EnabledBlocks overrides the template's default block set. Nil means
	// defaults.
	EnabledBlocks []string

	// Params holds enumerated parameter values, e.g. {"length": "long"}.
	Params map[string]string

	// Force permits summarizing an episode that is already summarized,
	// replacing the previous summary for the template (or adding one for a
	// different template).
	Force bool
}

// EpisodeService exposes the per-stage orchestrators and episode queries.
// Each Request* method performs the guard check, the active-task exclusion
// check, the optimistic in-progress status write, and the task submission.
type EpisodeService struct {
	episodes    store.EpisodeStore
	transcripts store.TranscriptStore
	summaries   store.SummaryStore
	tasks       TaskIndex
	engine      TaskEngine
	audio       media.Fetcher
	transcriber transcription.Transcriber
	official    TranscriptFetcher
	summarizer  Summarizer
	logger      *slog.Logger
}

// EpisodeServiceConfig bundles the collaborators of an EpisodeService.
// Transcriber and Official may be nil; the transcribe stage fails its
// precondition check when neither can produce a transcript.
type EpisodeServiceConfig struct {
	Episodes    store.EpisodeStore
	Transcripts store.TranscriptStore
	Summaries   store.SummaryStore
	Tasks       TaskIndex
	Engine      TaskEngine
	Audio       media.Fetcher
	Transcriber transcription.Transcriber
	Official    TranscriptFetcher
	Summarizer  Summarizer
	Logger      *slog.Logger
}

// NewEpisodeService creates an EpisodeService.
func NewEpisodeService(cfg EpisodeServiceConfig) (*EpisodeService, error) {
	if cfg.Episodes == nil || cfg.Transcripts == nil || cfg.Summaries == nil {
		return nil, errors.New("episode service requires episode, transcript, and summary stores")
	}
	if cfg.Tasks == nil || cfg.Engine == nil {
		return nil, errors.New("episode service requires a task index and engine")
	}
	if cfg.Audio == nil {
		return nil, errors.New("episode service requires an audio fetcher")
	}
	if cfg.Summarizer == nil {
		return nil, errors.New("episode service requires a summarizer")
	}
	if cfg.Logger == nil {
		return nil, errors.New("episode service requires a logger")
	}

	return &EpisodeService{
		episodes:    cfg.Episodes,
		transcripts: cfg.Transcripts,
		summaries:   cfg.Summaries,
		tasks:       cfg.Tasks,
		engine:      cfg.Engine,
		audio:       cfg.Audio,
		transcriber: cfg.Transcriber,
		official:    cfg.Official,
		summarizer:  cfg.Summarizer,
		logger:      cfg.Logger,
	}, nil
}

// Get retrieves an episode by ID.
func (s *EpisodeService) Get(ctx context.Context, id uuid.UUID) (*domain.Episode, error) {
	return s.episodes.GetByID(ctx, id)
}

// List retrieves episodes, newest first. A nil feedID lists across all feeds.
func (s *EpisodeService) List(ctx context.Context, feedID *uuid.UUID, limit, offset int) ([]*domain.Episode, error) {
	return s.episodes.List(ctx, feedID, limit, offset)
}

// GetTranscript retrieves the transcript for an episode.
func (s *EpisodeService) GetTranscript(ctx context.Context, episodeID uuid.UUID) (*domain.Transcript, error) {
	return s.transcripts.GetByEpisode(ctx, episodeID)
}

// GetSummary retrieves a summary for an episode and template.
func (s *EpisodeService) GetSummary(ctx context.Context, episodeID uuid.UUID, templateName string) (*domain.Summary, error) {
	return s.summaries.GetByEpisodeAndTemplate(ctx, episodeID, templateName)
}

// ListSummaries retrieves all summaries for an episode, one per template.
func (s *EpisodeService) ListSummaries(ctx context.Context, episodeID uuid.UUID) ([]*domain.Summary, error) {
	return s.summaries.ListByEpisode(ctx, episodeID)
}

// RequestAcquire submits an audio acquisition task for the episode.
func (s *EpisodeService) RequestAcquire(ctx context.Context, episodeID uuid.UUID) (uuid.UUID, error) {
	return s.requestStage(ctx, episodeID, domain.StageAcquire, task.TypeAcquire, false, s.runAcquire)
}

// RequestTranscribe submits a transcription task for the episode.
func (s *EpisodeService) RequestTranscribe(ctx context.Context, episodeID uuid.UUID) (uuid.UUID, error) {
	return s.requestStage(ctx, episodeID, domain.StageTranscribe, task.TypeTranscribe, false, s.runTranscribe)
}

// RequestSummarize submits a summarization task for the episode using the
// given template and options.
func (s *EpisodeService) RequestSummarize(ctx context.Context, episodeID uuid.UUID, req SummarizeRequest) (uuid.UUID, error) {
	run := func(ctx context.Context, episode *domain.Episode, progress task.ProgressFunc) stageOutcome {
		return s.runSummarize(ctx, episode, req, progress)
	}
	return s.requestStage(ctx, episodeID, domain.StageSummarize, task.TypeSummarize, req.Force, run)
}

// requestStage is the shared orchestration path: guard check, active-task
// exclusion check, in-progress status write, task submission. When force is
// true an already-complete guard failure is permitted (summary regeneration).
func (s *EpisodeService) requestStage(
	ctx context.Context,
	episodeID uuid.UUID,
	stage domain.Stage,
	taskType string,
	force bool,
	run stageRunner,
) (uuid.UUID, error) {
	episode, err := s.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return uuid.Nil, err
	}

	if !domain.CanEnter(stage, episode.Status) {
		reason := domain.ClassifyGuardFailure(stage, episode.Status)
		if !(force && reason == domain.ReasonAlreadyComplete) {
			return uuid.Nil, &GuardError{Stage: stage, Status: episode.Status, Reason: reason}
		}
	}

	if err := s.ensureNoActiveTask(ctx, taskType, episodeID); err != nil {
		return uuid.Nil, err
	}

	// The job body verifies the episode holds the in-progress status before
	// doing any work, so the status write must precede submission. It is
	// undone if submission fails.
	priorStatus := episode.Status
	if err := s.episodes.UpdateStatus(ctx, episodeID, stage.RunningStatus()); err != nil {
		return uuid.Nil, fmt.Errorf("failed to mark episode %s: %w", stage.RunningStatus(), err)
	}

	taskID, err := s.engine.Submit(ctx, taskType, episodeID, s.stageJob(stage, episodeID, run))
	if err != nil {
		if revertErr := s.episodes.UpdateStatus(ctx, episodeID, priorStatus); revertErr != nil {
			s.logger.Error("failed to revert episode status after submit failure",
				"episode_id", episodeID,
				"status", priorStatus,
				"error", revertErr)
		}
		return uuid.Nil, err
	}

	s.logger.Info("stage task submitted",
		"episode_id", episodeID,
		"stage", stage,
		"task_id", taskID)
	return taskID, nil
}

// ensureNoActiveTask enforces at most one in-flight task per (episode, type).
func (s *EpisodeService) ensureNoActiveTask(ctx context.Context, taskType string, subjectID uuid.UUID) error {
	existing, err := s.tasks.FindActiveTask(ctx, taskType, subjectID)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check for active task: %w", err)
	}
	if existing != nil {
		return ErrTaskAlreadyRunning
	}
	return nil
}

// DeleteTranscript removes the episode's transcript and regresses the status
// by exactly one stage so transcription can be requested again.
func (s *EpisodeService) DeleteTranscript(ctx context.Context, episodeID uuid.UUID) error {
	episode, err := s.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return err
	}

	if err := s.transcripts.Delete(ctx, episodeID); err != nil {
		return err
	}

	if err := s.episodes.SetHasTranscript(ctx, episodeID, false); err != nil {
		return err
	}

	if episode.Status == domain.StatusTranscribed {
		if err := s.episodes.UpdateStatus(ctx, episodeID, domain.StatusAcquired); err != nil {
			return err
		}
	}

	return nil
}

// DeleteSummary removes one summary. When it was the episode's last summary
// the status regresses by exactly one stage.
func (s *EpisodeService) DeleteSummary(ctx context.Context, episodeID uuid.UUID, templateName string) error {
	episode, err := s.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return err
	}

	if err := s.summaries.Delete(ctx, episodeID, templateName); err != nil {
		return err
	}

	remaining, err := s.summaries.CountByEpisode(ctx, episodeID)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}

	if err := s.episodes.SetHasSummary(ctx, episodeID, false); err != nil {
		return err
	}

	if episode.Status == domain.StatusSummarized {
		if err := s.episodes.UpdateStatus(ctx, episodeID, domain.StatusTranscribed); err != nil {
			return err
		}
	}

	return nil
}
