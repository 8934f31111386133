package driven

import (
	"context"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// AcceleratorIndex is an optional secondary index mirroring chunks for
// filtered lexical lookups. It is never authoritative; the knowledge store is.
type AcceleratorIndex interface {
	// Enabled reports whether the index is backed by a live service.
	Enabled() bool

	// Upsert writes mirror entries, replacing existing ones by chunk ID.
	Upsert(ctx context.Context, entries []domain.AcceleratorEntry) error

	// Search runs a filtered full-text lookup.
	Search(ctx context.Context, query domain.AcceleratorQuery) ([]domain.AcceleratorHit, error)

	// DeleteChunk removes one mirrored chunk.
	DeleteChunk(ctx context.Context, chunkID string) error

	// DeleteDocument removes every mirrored chunk of a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Clear drops all mirrored entries and recreates an empty index.
	Clear(ctx context.Context) error

	// Stats describes the index.
	Stats(ctx context.Context) (*domain.AcceleratorStats, error)

	// Close releases resources.
	Close() error
}
