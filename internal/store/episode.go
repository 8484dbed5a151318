package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
)

// EpisodeStore defines the interface for episode data persistence.
type EpisodeStore interface {
	// Create saves a new episode to the store.
	// It handles domain validation internally.
	// Returns ErrEpisodeExists if the (feed, GUID) pair is already present.
	Create(ctx context.Context, episode *domain.Episode) error

	// GetByID retrieves an episode by its unique ID.
	// Returns ErrEpisodeNotFound if the episode does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Episode, error)

	// FindByGUID retrieves an episode by feed ID and GUID.
	// Returns ErrEpisodeNotFound if no such episode exists.
	FindByGUID(ctx context.Context, feedID uuid.UUID, guid string) (*domain.Episode, error)

	// List retrieves episodes for a feed ordered by publication date,
	// newest first. A nil feedID lists across all feeds. Can limit the
	// number of results and paginate through offset.
	List(ctx context.Context, feedID *uuid.UUID, limit, offset int) ([]*domain.Episode, error)

	// Update saves changes to an existing episode.
	// Returns ErrEpisodeNotFound if the episode does not exist.
	Update(ctx context.Context, episode *domain.Episode) error

	// UpdateStatus updates the status of an existing episode.
	// Returns ErrEpisodeNotFound if the episode does not exist.
	// Returns validation errors if the status is invalid.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EpisodeStatus) error

	// SetAudioPath records the local audio file path for an episode.
	// Returns ErrEpisodeNotFound if the episode does not exist.
	SetAudioPath(ctx context.Context, id uuid.UUID, path string) error

	// SetHasTranscript flips the transcript presence flag.
	// Returns ErrEpisodeNotFound if the episode does not exist.
	SetHasTranscript(ctx context.Context, id uuid.UUID, has bool) error

	// SetHasSummary flips the summary presence flag.
	// Returns ErrEpisodeNotFound if the episode does not exist.
	SetHasSummary(ctx context.Context, id uuid.UUID, has bool) error

	// WithTx returns a new EpisodeStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) EpisodeStore
}
