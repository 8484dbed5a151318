package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
)

// TranscriptStore defines the interface for transcript data persistence.
// Each episode has at most one transcript; saving again replaces it.
type TranscriptStore interface {
	// Upsert saves a transcript, replacing any existing transcript for the
	// same episode.
	Upsert(ctx context.Context, transcript *domain.Transcript) error

	// GetByEpisode retrieves the transcript for an episode.
	// Returns ErrTranscriptNotFound if no transcript exists.
	GetByEpisode(ctx context.Context, episodeID uuid.UUID) (*domain.Transcript, error)

	// Delete removes the transcript for an episode.
	// Returns ErrTranscriptNotFound if no transcript exists.
	Delete(ctx context.Context, episodeID uuid.UUID) error

	// WithTx returns a new TranscriptStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TranscriptStore
}
