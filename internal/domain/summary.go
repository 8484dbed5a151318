package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Summary.
var (
	ErrEmptySummaryEpisodeID = errors.New("summary episode ID cannot be empty")
	ErrEmptySummaryTemplate  = errors.New("summary template name cannot be empty")
)

// TokenUsage records the model token counters for one generation.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Summary is the structured extraction produced by the summarization stage.
// There is exactly one per (episode, template); regeneration replaces it.
type Summary struct {
	ID            uuid.UUID         `json:"id"`
	EpisodeID     uuid.UUID         `json:"episode_id"`
	TemplateName  string            `json:"template_name"`
	EnabledBlocks []string          `json:"enabled_blocks"`
	Params        map[string]string `json:"params,omitempty"`

	// TLDR and Tags mirror the locked required fields of every template and
	// are lifted out of Fields for cheap listing queries.
	TLDR string   `json:"tldr"`
	Tags []string `json:"tags"`

	// Fields holds the full extracted field map keyed by output field key.
	Fields map[string]any `json:"fields"`

	// RawOutput is the model's response text before JSON decoding.
	RawOutput string `json:"raw_output,omitempty"`

	Model             string     `json:"model"`
	TokensUsed        TokenUsage `json:"tokens_used"`
	GenerationSeconds float64    `json:"generation_seconds"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSummary creates a Summary for the given episode and template, lifting
// the tldr and tags convenience fields out of the extracted field map.
func NewSummary(episodeID uuid.UUID, templateName string, fields map[string]any) (*Summary, error) {
	now := time.Now().UTC()
	summary := &Summary{
		ID:           uuid.New(),
		EpisodeID:    episodeID,
		TemplateName: templateName,
		Fields:       fields,
		Tags:         []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if tldr, ok := fields["tldr"].(string); ok {
		summary.TLDR = tldr
	}
	if rawTags, ok := fields["tags"].([]any); ok {
		for _, tag := range rawTags {
			if s, ok := tag.(string); ok {
				summary.Tags = append(summary.Tags, s)
			}
		}
	}

	if err := summary.Validate(); err != nil {
		return nil, err
	}

	return summary, nil
}

// Validate checks if the Summary has valid data.
func (s *Summary) Validate() error {
	if s.EpisodeID == uuid.Nil {
		return ErrEmptySummaryEpisodeID
	}
	if s.TemplateName == "" {
		return ErrEmptySummaryTemplate
	}
	return nil
}
