package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
	"github.com/Zhong-Ze-Wei/podcast/internal/store"
)

const feedColumns = `id, url, title, description, author, language,
	status, last_checked, check_error, created_at, updated_at`

// FeedStore implements store.FeedStore using PostgreSQL.
type FeedStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewFeedStore creates a PostgreSQL-backed feed store.
func NewFeedStore(db store.DBTX, logger *slog.Logger) *FeedStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FeedStore{
		db:     db,
		logger: logger.With(slog.String("component", "feed_store")),
	}
}

var _ store.FeedStore = (*FeedStore)(nil)

// Create implements store.FeedStore.Create.
func (s *FeedStore) Create(ctx context.Context, feed *domain.Feed) error {
	if err := feed.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO feeds (id, url, title, description, author, language,
			status, last_checked, check_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		feed.ID,
		feed.URL,
		feed.Title,
		feed.Description,
		feed.Author,
		feed.Language,
		feed.Status,
		feed.LastChecked,
		feed.CheckError,
		feed.CreatedAt,
		feed.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrFeedExists
		}
		s.logger.Error("failed to create feed",
			slog.String("feed_id", feed.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// GetByID implements store.FeedStore.GetByID.
func (s *FeedStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM feeds WHERE id = $1`
	feed, err := scanFeed(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrFeedNotFound
		}
		return nil, MapError(err)
	}
	return feed, nil
}

// List implements store.FeedStore.List.
func (s *FeedStore) List(ctx context.Context) ([]*domain.Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM feeds ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var feeds []*domain.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, MapError(err)
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return feeds, nil
}

// CountByStatus returns the number of feeds per status.
func (s *FeedStore) CountByStatus(ctx context.Context) (map[domain.FeedStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM feeds GROUP BY status`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	counts := make(map[domain.FeedStatus]int)
	for rows.Next() {
		var (
			status domain.FeedStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, MapError(err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return counts, nil
}

// Update implements store.FeedStore.Update.
func (s *FeedStore) Update(ctx context.Context, feed *domain.Feed) error {
	if err := feed.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	feed.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE feeds
		SET title = $1, description = $2, author = $3, language = $4,
			status = $5, last_checked = $6, check_error = $7, updated_at = $8
		WHERE id = $9
	`
	result, err := s.db.ExecContext(ctx, query,
		feed.Title,
		feed.Description,
		feed.Author,
		feed.Language,
		feed.Status,
		feed.LastChecked,
		feed.CheckError,
		feed.UpdatedAt,
		feed.ID,
	)
	if err != nil {
		return MapError(err)
	}

	return checkRowsAffected(result, store.ErrFeedNotFound)
}

// Delete implements store.FeedStore.Delete. Episodes and their artifacts go
// with the feed through the schema's cascade rules.
func (s *FeedStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM feeds WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrFeedNotFound)
}

// WithTx implements store.FeedStore.WithTx.
func (s *FeedStore) WithTx(tx *sql.Tx) store.FeedStore {
	return &FeedStore{db: tx, logger: s.logger}
}

func scanFeed(row scanner) (*domain.Feed, error) {
	var (
		feed        domain.Feed
		lastChecked sql.NullTime
	)
	err := row.Scan(
		&feed.ID,
		&feed.URL,
		&feed.Title,
		&feed.Description,
		&feed.Author,
		&feed.Language,
		&feed.Status,
		&lastChecked,
		&feed.CheckError,
		&feed.CreatedAt,
		&feed.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastChecked.Valid {
		t := lastChecked.Time.UTC()
		feed.LastChecked = &t
	}
	return &feed, nil
}
