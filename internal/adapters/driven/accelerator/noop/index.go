// Package noop provides the accelerator used when no RediSearch instance
// is configured. Every operation succeeds and searches find nothing.
package noop

import (
	"context"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.AcceleratorIndex = (*Index)(nil)

// Index is a disabled accelerator.
type Index struct{}

// New creates a disabled accelerator.
func New() *Index {
	return &Index{}
}

// Enabled always returns false.
func (*Index) Enabled() bool { return false }

// Upsert discards the entries.
func (*Index) Upsert(context.Context, []domain.AcceleratorEntry) error { return nil }

// Search returns no hits.
func (*Index) Search(context.Context, domain.AcceleratorQuery) ([]domain.AcceleratorHit, error) {
	return nil, nil
}

// DeleteChunk does nothing.
func (*Index) DeleteChunk(context.Context, string) error { return nil }

// DeleteDocument does nothing.
func (*Index) DeleteDocument(context.Context, string) error { return nil }

// Clear does nothing.
func (*Index) Clear(context.Context) error { return nil }

// Stats reports a disabled, empty index.
func (*Index) Stats(context.Context) (*domain.AcceleratorStats, error) {
	return &domain.AcceleratorStats{Enabled: false}, nil
}

// Close does nothing.
func (*Index) Close() error { return nil }
