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

const summaryColumns = `id, episode_id, template_name, enabled_blocks, params,
	tldr, tags, fields, raw_output, model,
	prompt_tokens, completion_tokens, total_tokens, generation_seconds,
	created_at, updated_at`

// SummaryStore implements store.SummaryStore using PostgreSQL. The extracted
// field map, tags, enabled blocks, and params are JSONB columns; the unique
// (episode_id, template_name) constraint enforces one summary per pair.
type SummaryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSummaryStore creates a PostgreSQL-backed summary store.
func NewSummaryStore(db store.DBTX, logger *slog.Logger) *SummaryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SummaryStore{
		db:     db,
		logger: logger.With(slog.String("component", "summary_store")),
	}
}

var _ store.SummaryStore = (*SummaryStore)(nil)

// Upsert implements store.SummaryStore.Upsert.
func (s *SummaryStore) Upsert(ctx context.Context, summary *domain.Summary) error {
	if err := summary.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	enabledBlocks, err := json.Marshal(summary.EnabledBlocks)
	if err != nil {
		return fmt.Errorf("failed to encode enabled blocks: %w", err)
	}
	tags, err := json.Marshal(summary.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	fields, err := json.Marshal(summary.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}
	var params []byte
	if len(summary.Params) > 0 {
		encoded, err := json.Marshal(summary.Params)
		if err != nil {
			return fmt.Errorf("failed to encode params: %w", err)
		}
		params = encoded
	}

	summary.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO summaries (id, episode_id, template_name, enabled_blocks,
			params, tldr, tags, fields, raw_output, model,
			prompt_tokens, completion_tokens, total_tokens,
			generation_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (episode_id, template_name) DO UPDATE
		SET enabled_blocks = EXCLUDED.enabled_blocks,
			params = EXCLUDED.params,
			tldr = EXCLUDED.tldr,
			tags = EXCLUDED.tags,
			fields = EXCLUDED.fields,
			raw_output = EXCLUDED.raw_output,
			model = EXCLUDED.model,
			prompt_tokens = EXCLUDED.prompt_tokens,
			completion_tokens = EXCLUDED.completion_tokens,
			total_tokens = EXCLUDED.total_tokens,
			generation_seconds = EXCLUDED.generation_seconds,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		summary.ID,
		summary.EpisodeID,
		summary.TemplateName,
		enabledBlocks,
		params,
		summary.TLDR,
		tags,
		fields,
		summary.RawOutput,
		summary.Model,
		summary.TokensUsed.Prompt,
		summary.TokensUsed.Completion,
		summary.TokensUsed.Total,
		summary.GenerationSeconds,
		summary.CreatedAt,
		summary.UpdatedAt,
	)
	if err != nil {
		s.logger.Error("failed to upsert summary",
			slog.String("episode_id", summary.EpisodeID.String()),
			slog.String("template", summary.TemplateName),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// GetByEpisodeAndTemplate implements store.SummaryStore.GetByEpisodeAndTemplate.
func (s *SummaryStore) GetByEpisodeAndTemplate(ctx context.Context, episodeID uuid.UUID, templateName string) (*domain.Summary, error) {
	query := `SELECT ` + summaryColumns + ` FROM summaries WHERE episode_id = $1 AND template_name = $2`
	summary, err := scanSummary(s.db.QueryRowContext(ctx, query, episodeID, templateName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSummaryNotFound
		}
		return nil, MapError(err)
	}
	return summary, nil
}

// ListByEpisode implements store.SummaryStore.ListByEpisode.
func (s *SummaryStore) ListByEpisode(ctx context.Context, episodeID uuid.UUID) ([]*domain.Summary, error) {
	query := `SELECT ` + summaryColumns + ` FROM summaries WHERE episode_id = $1 ORDER BY template_name`
	rows, err := s.db.QueryContext(ctx, query, episodeID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var summaries []*domain.Summary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, MapError(err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return summaries, nil
}

// Delete implements store.SummaryStore.Delete.
func (s *SummaryStore) Delete(ctx context.Context, episodeID uuid.UUID, templateName string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM summaries WHERE episode_id = $1 AND template_name = $2`,
		episodeID, templateName)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrSummaryNotFound)
}

// CountByEpisode implements store.SummaryStore.CountByEpisode.
func (s *SummaryStore) CountByEpisode(ctx context.Context, episodeID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM summaries WHERE episode_id = $1`, episodeID).Scan(&count)
	if err != nil {
		return 0, MapError(err)
	}
	return count, nil
}

// WithTx implements store.SummaryStore.WithTx.
func (s *SummaryStore) WithTx(tx *sql.Tx) store.SummaryStore {
	return &SummaryStore{db: tx, logger: s.logger}
}

func scanSummary(row scanner) (*domain.Summary, error) {
	var (
		summary       domain.Summary
		enabledBlocks []byte
		params        []byte
		tags          []byte
		fields        []byte
	)
	err := row.Scan(
		&summary.ID,
		&summary.EpisodeID,
		&summary.TemplateName,
		&enabledBlocks,
		&params,
		&summary.TLDR,
		&tags,
		&fields,
		&summary.RawOutput,
		&summary.Model,
		&summary.TokensUsed.Prompt,
		&summary.TokensUsed.Completion,
		&summary.TokensUsed.Total,
		&summary.GenerationSeconds,
		&summary.CreatedAt,
		&summary.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(enabledBlocks, &summary.EnabledBlocks); err != nil {
		return nil, fmt.Errorf("failed to decode enabled blocks: %w", err)
	}
	if err := json.Unmarshal(tags, &summary.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	if err := json.Unmarshal(fields, &summary.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &summary.Params); err != nil {
			return nil, fmt.Errorf("failed to decode params: %w", err)
		}
	}

	return &summary, nil
}
