package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// SourceStore persists source configurations.
type SourceStore interface {
	// Save stores or updates a source.
	Save(ctx context.Context, source domain.Source) error

	// Get retrieves a source by ID.
	// Returns domain.ErrNotFound if the source does not exist.
	Get(ctx context.Context, id string) (*domain.Source, error)

	// Delete removes a source.
	Delete(ctx context.Context, id string) error

	// List returns all configured sources.
	List(ctx context.Context) ([]domain.Source, error)

	// TouchLastCrawl sets the source's last successful crawl time.
	TouchLastCrawl(ctx context.Context, id string, at time.Time) error
}
