package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Transcript source identifiers.
const (
	TranscriptSourceBackend  = "backend"
	TranscriptSourceOfficial = "official"
	TranscriptSourceManual   = "manual"
)

// Common validation errors for Transcript.
var (
	ErrEmptyTranscriptEpisodeID = errors.New("transcript episode ID cannot be empty")
	ErrEmptyTranscriptText      = errors.New("transcript text cannot be empty")
)

// TranscriptSegment is one speaker-attributed span of a transcript.
type TranscriptSegment struct {
	Start   float64 `json:"start,omitempty"`
	End     float64 `json:"end,omitempty"`
	Speaker string  `json:"speaker,omitempty"`
	Text    string  `json:"text"`
}

// Transcript is the text artifact produced by the transcription stage.
// There is at most one per episode; regeneration replaces it.
type Transcript struct {
	ID        uuid.UUID           `json:"id"`
	EpisodeID uuid.UUID           `json:"episode_id"`
	Text      string              `json:"text"`
	Segments  []TranscriptSegment `json:"segments,omitempty"`
	Language  string              `json:"language,omitempty"`
	WordCount int                 `json:"word_count"`
	Source    string              `json:"source"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// NewTranscript creates a Transcript for the given episode. The word count
// is derived from the text.
func NewTranscript(episodeID uuid.UUID, text, source string) (*Transcript, error) {
	now := time.Now().UTC()
	transcript := &Transcript{
		ID:        uuid.New(),
		EpisodeID: episodeID,
		Text:      text,
		WordCount: len(strings.Fields(text)),
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := transcript.Validate(); err != nil {
		return nil, err
	}

	return transcript, nil
}

// Validate checks if the Transcript has valid data.
func (t *Transcript) Validate() error {
	if t.EpisodeID == uuid.Nil {
		return ErrEmptyTranscriptEpisodeID
	}
	if t.Text == "" {
		return ErrEmptyTranscriptText
	}
	return nil
}
