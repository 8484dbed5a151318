package store

import (
	"context"
	"database/sql"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
)

// TemplateStore defines the interface for prompt template persistence.
type TemplateStore interface {
	// Upsert saves a template keyed by name, replacing any existing
	// definition. The template must already have passed Validate.
	Upsert(ctx context.Context, template *domain.Template) error

	// GetByName retrieves a template by its unique name.
	// Returns ErrTemplateNotFound if the template does not exist.
	GetByName(ctx context.Context, name string) (*domain.Template, error)

	// List retrieves all templates ordered by name.
	List(ctx context.Context) ([]*domain.Template, error)

	// Delete removes a non-system template by name.
	// Returns ErrTemplateNotFound if the template does not exist.
	Delete(ctx context.Context, name string) error

	// WithTx returns a new TemplateStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TemplateStore
}
