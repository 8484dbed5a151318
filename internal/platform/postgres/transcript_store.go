package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
	"github.com/Zhong-Ze-Wei/podcast/internal/store"
)

// TranscriptStore implements store.TranscriptStore using PostgreSQL. The
// segments column is JSONB; the unique episode_id constraint enforces the
// one-transcript-per-episode rule.
type TranscriptStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewTranscriptStore creates a PostgreSQL-backed transcript store.
func NewTranscriptStore(db store.DBTX, logger *slog.Logger) *TranscriptStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TranscriptStore{
		db:     db,
		logger: logger.With(slog.String("component", "transcript_store")),
	}
}

var _ store.TranscriptStore = (*TranscriptStore)(nil)

// Upsert implements store.TranscriptStore.Upsert.
func (s *TranscriptStore) Upsert(ctx context.Context, transcript *domain.Transcript) error {
	if err := transcript.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	var segments []byte
	if len(transcript.Segments) > 0 {
		encoded, err := json.Marshal(transcript.Segments)
		if err != nil {
			return fmt.Errorf("failed to encode segments: %w", err)
		}
		segments = encoded
	}

	transcript.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO transcripts (id, episode_id, text, segments, language,
			word_count, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (episode_id) DO UPDATE
		SET text = EXCLUDED.text,
			segments = EXCLUDED.segments,
			language = EXCLUDED.language,
			word_count = EXCLUDED.word_count,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		transcript.ID,
		transcript.EpisodeID,
		transcript.Text,
		segments,
		transcript.Language,
		transcript.WordCount,
		transcript.Source,
		transcript.CreatedAt,
		transcript.UpdatedAt,
	)
	if err != nil {
		s.logger.Error("failed to upsert transcript",
			slog.String("episode_id", transcript.EpisodeID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// GetByEpisode implements store.TranscriptStore.GetByEpisode.
func (s *TranscriptStore) GetByEpisode(ctx context.Context, episodeID uuid.UUID) (*domain.Transcript, error) {
	query := `
		SELECT id, episode_id, text, segments, language, word_count, source,
			created_at, updated_at
		FROM transcripts
		WHERE episode_id = $1
	`

	var (
		transcript domain.Transcript
		segments   []byte
	)
	err := s.db.QueryRowContext(ctx, query, episodeID).Scan(
		&transcript.ID,
		&transcript.EpisodeID,
		&transcript.Text,
		&segments,
		&transcript.Language,
		&transcript.WordCount,
		&transcript.Source,
		&transcript.CreatedAt,
		&transcript.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTranscriptNotFound
		}
		return nil, MapError(err)
	}

	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &transcript.Segments); err != nil {
			return nil, fmt.Errorf("failed to decode segments: %w", err)
		}
	}

	return &transcript, nil
}

// Delete implements store.TranscriptStore.Delete.
func (s *TranscriptStore) Delete(ctx context.Context, episodeID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE episode_id = $1`, episodeID)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrTranscriptNotFound)
}

// WithTx implements store.TranscriptStore.WithTx.
func (s *TranscriptStore) WithTx(tx *sql.Tx) store.TranscriptStore {
	return &TranscriptStore{db: tx, logger: s.logger}
}
