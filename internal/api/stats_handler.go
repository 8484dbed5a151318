package api

import (
	"context"
	"net/http"

	"github.com/Zhong-Ze-Wei/podcast/internal/api/shared"
	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
	"github.com/Zhong-Ze-Wei/podcast/internal/task"
)

// FeedCounter counts feeds per status.
type FeedCounter interface {
	CountByStatus(ctx context.Context) (map[domain.FeedStatus]int, error)
}

// EpisodeCounter counts episodes per status.
type EpisodeCounter interface {
	CountByStatus(ctx context.Context) (map[domain.EpisodeStatus]int, error)
}

// TaskCounter counts task records per status.
type TaskCounter interface {
	CountByStatus(ctx context.Context) (map[task.Status]int, error)
}

// FeedStats summarizes the feed table.
type FeedStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// EpisodeStats summarizes pipeline progress. The stage counters are
// cumulative: an episode being summarized still counts as acquired and
// transcribed.
type EpisodeStats struct {
	Total       int `json:"total"`
	Acquired    int `json:"acquired"`
	Transcribed int `json:"transcribed"`
	Summarized  int `json:"summarized"`
}

// TaskStats summarizes outstanding background work.
type TaskStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Feeds    FeedStats    `json:"feeds"`
	Episodes EpisodeStats `json:"episodes"`
	Tasks    TaskStats    `json:"tasks"`
}

// StatsHandler serves aggregate counts over feeds, episodes, and tasks.
type StatsHandler struct {
	feeds    FeedCounter
	episodes EpisodeCounter
	tasks    TaskCounter
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(feeds FeedCounter, episodes EpisodeCounter, tasks TaskCounter) *StatsHandler {
	return &StatsHandler{feeds: feeds, episodes: episodes, tasks: tasks}
}

// Get handles GET /api/stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	feedCounts, err := h.feeds.CountByStatus(r.Context())
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	episodeCounts, err := h.episodes.CountByStatus(r.Context())
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	taskCounts, err := h.tasks.CountByStatus(r.Context())
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, StatsResponse{
		Feeds: FeedStats{
			Total:  sumCounts(feedCounts),
			Active: feedCounts[domain.FeedStatusActive],
		},
		Episodes: episodeStats(episodeCounts),
		Tasks: TaskStats{
			Pending:    taskCounts[task.StatusPending],
			Processing: taskCounts[task.StatusProcessing],
		},
	})
}

// episodeStats folds per-status counts into cumulative stage counters.
func episodeStats(counts map[domain.EpisodeStatus]int) EpisodeStats {
	acquired := counts[domain.StatusAcquired] +
		counts[domain.StatusTranscribing] +
		counts[domain.StatusTranscribed] +
		counts[domain.StatusSummarizing] +
		counts[domain.StatusSummarized]
	transcribed := counts[domain.StatusTranscribed] +
		counts[domain.StatusSummarizing] +
		counts[domain.StatusSummarized]

	return EpisodeStats{
		Total:       sumEpisodeCounts(counts),
		Acquired:    acquired,
		Transcribed: transcribed,
		Summarized:  counts[domain.StatusSummarized],
	}
}

func sumCounts(counts map[domain.FeedStatus]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func sumEpisodeCounts(counts map[domain.EpisodeStatus]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
