package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
)

// FeedStore defines the interface for feed data persistence.
type FeedStore interface {
	// Create saves a new feed to the store.
	// Returns ErrFeedExists if a feed with the same URL is already present.
	Create(ctx context.Context, feed *domain.Feed) error

	// GetByID retrieves a feed by its unique ID.
	// Returns ErrFeedNotFound if the feed does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Feed, error)

	// List retrieves all feeds ordered by creation time.
	List(ctx context.Context) ([]*domain.Feed, error)

	// Update saves changes to an existing feed, including refresh bookkeeping.
	// Returns ErrFeedNotFound if the feed does not exist.
	Update(ctx context.Context, feed *domain.Feed) error

	// Delete removes a feed.
	// Returns ErrFeedNotFound if the feed does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new FeedStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) FeedStore
}
