package driving

import (
	"context"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// SearchService provides hybrid retrieval to external actors.
type SearchService interface {
	// HybridSearch ranks chunks by fused vector similarity and lexical rank.
	HybridSearch(ctx context.Context, query domain.HybridQuery) ([]domain.HybridHit, error)
}

// AcceleratorService manages the optional accelerator index.
type AcceleratorService interface {
	// Rebuild clears the accelerator and mirrors every chunk again.
	// Returns the number of entries written.
	Rebuild(ctx context.Context) (int, error)

	// Stats describes the accelerator index.
	Stats(ctx context.Context) (*domain.AcceleratorStats, error)

	// Clear drops all mirrored entries.
	Clear(ctx context.Context) error
}
