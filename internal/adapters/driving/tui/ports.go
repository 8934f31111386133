// Package tui provides an interactive terminal browser over the knowledge
// base: type a query, walk the ranked hits, open a document.
package tui

import (
	"context"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driving"
)

// DocumentReader loads a document and its chunks.
// driving.IngestionService satisfies it.
type DocumentReader interface {
	Get(ctx context.Context, documentID string) (*domain.KnowledgeDocument, error)
	Chunks(ctx context.Context, documentID string) ([]domain.Chunk, error)
}

// Ports aggregates the driving ports the TUI needs.
type Ports struct {
	// Search runs hybrid retrieval.
	Search driving.SearchService

	// Documents loads the document behind a hit.
	Documents DocumentReader
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.Documents == nil {
		return ErrMissingDocumentReader
	}
	return nil
}
