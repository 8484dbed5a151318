package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
	"github.com/Zhong-Ze-Wei/podcast/internal/store"
)

const templateColumns = `id, name, display_name, description, is_system,
	is_active, locked, blocks, parameters, skeleton, created_at, updated_at`

// TemplateStore implements store.TemplateStore using PostgreSQL. The locked
// section, block catalogue, parameter definitions, and prompt skeleton are
// JSONB documents; templates are keyed by their unique name.
type TemplateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewTemplateStore creates a PostgreSQL-backed template store.
func NewTemplateStore(db store.DBTX, logger *slog.Logger) *TemplateStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TemplateStore{
		db:     db,
		logger: logger.With(slog.String("component", "template_store")),
	}
}

var _ store.TemplateStore = (*TemplateStore)(nil)

// Upsert implements store.TemplateStore.Upsert.
func (s *TemplateStore) Upsert(ctx context.Context, template *domain.Template) error {
	if err := template.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	locked, err := json.Marshal(template.Locked)
	if err != nil {
		return fmt.Errorf("failed to encode locked section: %w", err)
	}
	blocks, err := json.Marshal(template.Blocks)
	if err != nil {
		return fmt.Errorf("failed to encode blocks: %w", err)
	}
	skeleton, err := json.Marshal(template.Skeleton)
	if err != nil {
		return fmt.Errorf("failed to encode skeleton: %w", err)
	}
	var parameters []byte
	if len(template.Parameters) > 0 {
		encoded, err := json.Marshal(template.Parameters)
		if err != nil {
			return fmt.Errorf("failed to encode parameters: %w", err)
		}
		parameters = encoded
	}

	template.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO prompt_templates (id, name, display_name, description,
			is_system, is_active, locked, blocks, parameters, skeleton,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (name) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			description = EXCLUDED.description,
			is_system = EXCLUDED.is_system,
			is_active = EXCLUDED.is_active,
			locked = EXCLUDED.locked,
			blocks = EXCLUDED.blocks,
			parameters = EXCLUDED.parameters,
			skeleton = EXCLUDED.skeleton,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		template.ID,
		template.Name,
		template.DisplayName,
		template.Description,
		template.IsSystem,
		template.IsActive,
		locked,
		blocks,
		parameters,
		skeleton,
		template.CreatedAt,
		template.UpdatedAt,
	)
	if err != nil {
		s.logger.Error("failed to upsert template",
			slog.String("name", template.Name),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// GetByName implements store.TemplateStore.GetByName.
func (s *TemplateStore) GetByName(ctx context.Context, name string) (*domain.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM prompt_templates WHERE name = $1`
	template, err := scanTemplate(s.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTemplateNotFound
		}
		return nil, MapError(err)
	}
	return template, nil
}

// List implements store.TemplateStore.List.
func (s *TemplateStore) List(ctx context.Context) ([]*domain.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM prompt_templates ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var templates []*domain.Template
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, MapError(err)
		}
		templates = append(templates, template)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return templates, nil
}

// Delete implements store.TemplateStore.Delete. System templates are not
// deletable; they come back on every startup registration anyway.
func (s *TemplateStore) Delete(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM prompt_templates WHERE name = $1 AND is_system = FALSE`, name)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrTemplateNotFound)
}

// WithTx implements store.TemplateStore.WithTx.
func (s *TemplateStore) WithTx(tx *sql.Tx) store.TemplateStore {
	return &TemplateStore{db: tx, logger: s.logger}
}

func scanTemplate(row scanner) (*domain.Template, error) {
	var (
		template   domain.Template
		locked     []byte
		blocks     []byte
		parameters []byte
		skeleton   []byte
	)
	err := row.Scan(
		&template.ID,
		&template.Name,
		&template.DisplayName,
		&template.Description,
		&template.IsSystem,
		&template.IsActive,
		&locked,
		&blocks,
		&parameters,
		&skeleton,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(locked, &template.Locked); err != nil {
		return nil, fmt.Errorf("failed to decode locked section: %w", err)
	}
	if err := json.Unmarshal(blocks, &template.Blocks); err != nil {
		return nil, fmt.Errorf("failed to decode blocks: %w", err)
	}
	if err := json.Unmarshal(skeleton, &template.Skeleton); err != nil {
		return nil, fmt.Errorf("failed to decode skeleton: %w", err)
	}
	if len(parameters) > 0 {
		if err := json.Unmarshal(parameters, &template.Parameters); err != nil {
			return nil, fmt.Errorf("failed to decode parameters: %w", err)
		}
	}

	return &template, nil
}
