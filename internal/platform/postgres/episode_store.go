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

// episodeColumns is the column list shared by every episode SELECT.
const episodeColumns = `id, feed_id, guid, title, description, link,
	audio_url, audio_type, audio_size, duration, transcript_url,
	status, audio_path, has_transcript, has_summary,
	published_at, created_at, updated_at`

// EpisodeStore implements store.EpisodeStore using PostgreSQL.
type EpisodeStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewEpisodeStore creates a PostgreSQL-backed episode store.
func NewEpisodeStore(db store.DBTX, logger *slog.Logger) *EpisodeStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &EpisodeStore{
		db:     db,
		logger: logger.With(slog.String("component", "episode_store")),
	}
}

var _ store.EpisodeStore = (*EpisodeStore)(nil)

// Create implements store.EpisodeStore.Create.
func (s *EpisodeStore) Create(ctx context.Context, episode *domain.Episode) error {
	if err := episode.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO episodes (id, feed_id, guid, title, description, link,
			audio_url, audio_type, audio_size, duration, transcript_url,
			status, audio_path, has_transcript, has_summary,
			published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := s.db.ExecContext(ctx, query,
		episode.ID,
		episode.FeedID,
		episode.GUID,
		episode.Title,
		episode.Description,
		episode.Link,
		episode.AudioURL,
		episode.AudioType,
		episode.AudioSize,
		episode.Duration,
		episode.TranscriptURL,
		episode.Status,
		episode.AudioPath,
		episode.HasTranscript,
		episode.HasSummary,
		episode.PublishedAt,
		episode.CreatedAt,
		episode.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrEpisodeExists
		}
		s.logger.Error("failed to create episode",
			slog.String("episode_id", episode.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// GetByID implements store.EpisodeStore.GetByID.
func (s *EpisodeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE id = $1`
	episode, err := scanEpisode(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrEpisodeNotFound
		}
		return nil, MapError(err)
	}
	return episode, nil
}

// FindByGUID implements store.EpisodeStore.FindByGUID.
func (s *EpisodeStore) FindByGUID(ctx context.Context, feedID uuid.UUID, guid string) (*domain.Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE feed_id = $1 AND guid = $2`
	episode, err := scanEpisode(s.db.QueryRowContext(ctx, query, feedID, guid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrEpisodeNotFound
		}
		return nil, MapError(err)
	}
	return episode, nil
}

// List implements store.EpisodeStore.List.
func (s *EpisodeStore) List(ctx context.Context, feedID *uuid.UUID, limit, offset int) ([]*domain.Episode, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		rows *sql.Rows
		err  error
	)
	order := ` ORDER BY published_at DESC NULLS LAST, created_at DESC`
	if feedID != nil {
		query := `SELECT ` + episodeColumns + ` FROM episodes WHERE feed_id = $1` + order + ` LIMIT $2 OFFSET $3`
		rows, err = s.db.QueryContext(ctx, query, *feedID, limit, offset)
	} else {
		query := `SELECT ` + episodeColumns + ` FROM episodes` + order + ` LIMIT $1 OFFSET $2`
		rows, err = s.db.QueryContext(ctx, query, limit, offset)
	}
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var episodes []*domain.Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, MapError(err)
		}
		episodes = append(episodes, episode)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return episodes, nil
}

// CountByStatus returns the number of episodes per status. Statuses with no
// episodes are absent from the map.
func (s *EpisodeStore) CountByStatus(ctx context.Context) (map[domain.EpisodeStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM episodes GROUP BY status`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	counts := make(map[domain.EpisodeStatus]int)
	for rows.Next() {
		var (
			status domain.EpisodeStatus
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

// Update implements store.EpisodeStore.Update.
func (s *EpisodeStore) Update(ctx context.Context, episode *domain.Episode) error {
	if err := episode.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	episode.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE episodes
		SET title = $1, description = $2, link = $3, audio_url = $4,
			audio_type = $5, audio_size = $6, duration = $7,
			transcript_url = $8, status = $9, audio_path = $10,
			has_transcript = $11, has_summary = $12, published_at = $13,
			updated_at = $14
		WHERE id = $15
	`
	result, err := s.db.ExecContext(ctx, query,
		episode.Title,
		episode.Description,
		episode.Link,
		episode.AudioURL,
		episode.AudioType,
		episode.AudioSize,
		episode.Duration,
		episode.TranscriptURL,
		episode.Status,
		episode.AudioPath,
		episode.HasTranscript,
		episode.HasSummary,
		episode.PublishedAt,
		episode.UpdatedAt,
		episode.ID,
	)
	if err != nil {
		return MapError(err)
	}

	return checkRowsAffected(result, store.ErrEpisodeNotFound)
}

// UpdateStatus implements store.EpisodeStore.UpdateStatus.
func (s *EpisodeStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EpisodeStatus) error {
	// Validate through a throwaway entity so invalid statuses never reach
	// the database.
	probe := domain.Episode{}
	if err := probe.UpdateStatus(status); err != nil {
		return err
	}

	query := `UPDATE episodes SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return MapError(err)
	}

	return checkRowsAffected(result, store.ErrEpisodeNotFound)
}

// SetAudioPath implements store.EpisodeStore.SetAudioPath.
func (s *EpisodeStore) SetAudioPath(ctx context.Context, id uuid.UUID, path string) error {
	query := `UPDATE episodes SET audio_path = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, path, time.Now().UTC(), id)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrEpisodeNotFound)
}

// SetHasTranscript implements store.EpisodeStore.SetHasTranscript.
func (s *EpisodeStore) SetHasTranscript(ctx context.Context, id uuid.UUID, has bool) error {
	query := `UPDATE episodes SET has_transcript = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, has, time.Now().UTC(), id)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrEpisodeNotFound)
}

// SetHasSummary implements store.EpisodeStore.SetHasSummary.
func (s *EpisodeStore) SetHasSummary(ctx context.Context, id uuid.UUID, has bool) error {
	query := `UPDATE episodes SET has_summary = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, has, time.Now().UTC(), id)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrEpisodeNotFound)
}

// WithTx implements store.EpisodeStore.WithTx.
func (s *EpisodeStore) WithTx(tx *sql.Tx) store.EpisodeStore {
	return &EpisodeStore{db: tx, logger: s.logger}
}

// scanner abstracts *sql.Row and *sql.Rows for the shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row scanner) (*domain.Episode, error) {
	var (
		episode     domain.Episode
		publishedAt sql.NullTime
	)
	err := row.Scan(
		&episode.ID,
		&episode.FeedID,
		&episode.GUID,
		&episode.Title,
		&episode.Description,
		&episode.Link,
		&episode.AudioURL,
		&episode.AudioType,
		&episode.AudioSize,
		&episode.Duration,
		&episode.TranscriptURL,
		&episode.Status,
		&episode.AudioPath,
		&episode.HasTranscript,
		&episode.HasSummary,
		&publishedAt,
		&episode.CreatedAt,
		&episode.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		t := publishedAt.Time.UTC()
		episode.PublishedAt = &t
	}
	return &episode, nil
}
