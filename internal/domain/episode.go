package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EpisodeStatus represents the processing state of an episode as it moves
// through the acquisition, transcription, and summarization stages.
type EpisodeStatus string

// Possible episode status values. The pipeline is strictly linear. Stage
// failures revert to the stage's entry status rather than writing StatusError;
// the error status is a valid stored value (guards reject it as a wrong prior
// state) but no pipeline path produces it.
const (
	StatusNew          EpisodeStatus = "new"
	StatusAcquiring    EpisodeStatus = "acquiring"
	StatusAcquired     EpisodeStatus = "acquired"
	StatusTranscribing EpisodeStatus = "transcribing"
	StatusTranscribed  EpisodeStatus = "transcribed"
	StatusSummarizing  EpisodeStatus = "summarizing"
	StatusSummarized   EpisodeStatus = "summarized"
	StatusError        EpisodeStatus = "error"
)

// Common validation errors for Episode.
var (
	ErrEmptyEpisodeID     = errors.New("episode ID cannot be empty")
	ErrEmptyEpisodeFeedID = errors.New("episode feed ID cannot be empty")
	ErrEmptyEpisodeGUID   = errors.New("episode GUID cannot be empty")
	ErrEmptyEpisodeTitle  = errors.New("episode title cannot be empty")
)

// Episode represents a single podcast episode and the artifacts derived from
// it. The Status field is the entity state machine described in stage.go.
type Episode struct {
	ID            uuid.UUID     `json:"id"`
	FeedID        uuid.UUID     `json:"feed_id"`
	GUID          string        `json:"guid"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Link          string        `json:"link"`
	AudioURL      string        `json:"audio_url"`
	AudioType     string        `json:"audio_type"`
	AudioSize     int64         `json:"audio_size"`
	Duration      int           `json:"duration"`
	TranscriptURL string        `json:"transcript_url,omitempty"`
	Status        EpisodeStatus `json:"status"`
	AudioPath     string        `json:"audio_path,omitempty"`
	HasTranscript bool          `json:"has_transcript"`
	HasSummary    bool          `json:"has_summary"`
	PublishedAt   *time.Time    `json:"published_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewEpisode creates a new Episode belonging to the given feed, in status
// StatusNew, with creation timestamps set. Returns an error if validation
// fails.
func NewEpisode(feedID uuid.UUID, guid, title string) (*Episode, error) {
	now := time.Now().UTC()
	episode := &Episode{
		ID:        uuid.New(),
		FeedID:    feedID,
		GUID:      guid,
		Title:     title,
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := episode.Validate(); err != nil {
		return nil, err
	}

	return episode, nil
}

// Validate checks if the Episode has valid data.
func (e *Episode) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEmptyEpisodeID
	}
	if e.FeedID == uuid.Nil {
		return ErrEmptyEpisodeFeedID
	}
	if e.GUID == "" {
		return ErrEmptyEpisodeGUID
	}
	if e.Title == "" {
		return ErrEmptyEpisodeTitle
	}
	if !isValidEpisodeStatus(e.Status) {
		return ErrInvalidEpisodeStatus
	}
	return nil
}

// UpdateStatus updates the episode's status and the UpdatedAt timestamp.
// Returns an error if the new status is invalid.
func (e *Episode) UpdateStatus(status EpisodeStatus) error {
	if !isValidEpisodeStatus(status) {
		return ErrInvalidEpisodeStatus
	}

	e.Status = status
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// IsProcessing reports whether the status denotes an in-flight stage.
func (s EpisodeStatus) IsProcessing() bool {
	switch s {
	case StatusAcquiring, StatusTranscribing, StatusSummarizing:
		return true
	default:
		return false
	}
}

func isValidEpisodeStatus(status EpisodeStatus) bool {
	switch status {
	case StatusNew, StatusAcquiring, StatusAcquired, StatusTranscribing,
		StatusTranscribed, StatusSummarizing, StatusSummarized, StatusError:
		return true
	default:
		return false
	}
}
