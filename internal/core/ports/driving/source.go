package driving

import (
	"context"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// SourceService manages source configurations.
type SourceService interface {
	// Add creates a new source configuration.
	Add(ctx context.Context, source domain.Source) error

	// Get retrieves a source by ID.
	Get(ctx context.Context, id string) (*domain.Source, error)

	// List returns all configured sources.
	List(ctx context.Context) ([]domain.Source, error)

	// Update modifies an existing source configuration.
	Update(ctx context.Context, source domain.Source) error

	// Remove deletes a source and its discovered records.
	Remove(ctx context.Context, id string) error

	// Import reads source definitions from a YAML file and saves them.
	Import(ctx context.Context, path string) ([]domain.Source, error)
}
