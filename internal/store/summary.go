package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
)

// SummaryStore defines the interface for summary data persistence.
// Summaries are unique per (episode, template); saving again replaces the
// previous generation.
type SummaryStore interface {
	// Upsert saves a summary, replacing any existing summary for the same
	// episode and template.
	Upsert(ctx context.Context, summary *domain.Summary) error

	// GetByEpisodeAndTemplate retrieves a summary for an episode generated
	// with the named template.
	// Returns ErrSummaryNotFound if no such summary exists.
	GetByEpisodeAndTemplate(ctx context.Context, episodeID uuid.UUID, templateName string) (*domain.Summary, error)

	// ListByEpisode retrieves all summaries for an episode, one per template.
	ListByEpisode(ctx context.Context, episodeID uuid.UUID) ([]*domain.Summary, error)

	// Delete removes the summary for an episode and template.
	// Returns ErrSummaryNotFound if no such summary exists.
	Delete(ctx context.Context, episodeID uuid.UUID, templateName string) error

	// CountByEpisode reports how many summaries exist for an episode.
	CountByEpisode(ctx context.Context, episodeID uuid.UUID) (int, error)

	// WithTx returns a new SummaryStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) SummaryStore
}
