package driven

import (
	"context"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// KnowledgeStore persists knowledge documents and their chunks.
// It is the authoritative store for embeddings and provides the
// baseline full-text index over chunk content.
type KnowledgeStore interface {
	// SaveDocument creates or updates a document.
	SaveDocument(ctx context.Context, doc *domain.KnowledgeDocument) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if absent.
	GetDocument(ctx context.Context, id string) (*domain.KnowledgeDocument, error)

	// FindByRecord returns the document built from a page record, or nil.
	FindByRecord(ctx context.Context, recordID string) (*domain.KnowledgeDocument, error)

	// ListDocuments returns documents matching a filter, newest first.
	ListDocuments(ctx context.Context, filter domain.SearchFilter, limit int) ([]domain.KnowledgeDocument, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// ReplaceChunks atomically swaps all chunks of a document and marks it indexed.
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// GetChunks returns the chunks of a document ordered by position.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// ChunksMissingEmbedding returns chunks of active documents whose column
	// for the given space is empty. Category is optional.
	ChunksMissingEmbedding(ctx context.Context, space domain.EmbeddingSpace, category domain.Category, limit int) ([]domain.Chunk, error)

	// CountMissingEmbedding counts the chunks ChunksMissingEmbedding would return without a limit.
	CountMissingEmbedding(ctx context.Context, space domain.EmbeddingSpace, category domain.Category) (int, error)

	// SetChunkEmbedding writes one embedding column of a chunk.
	SetChunkEmbedding(ctx context.Context, chunkID string, space domain.EmbeddingSpace, vector []float32) error

	// EmbeddingStats reports embedding coverage of a document's chunks.
	EmbeddingStats(ctx context.Context, documentID string) (*domain.EmbeddingStats, error)

	// LexicalSearch ranks chunks of active documents by full-text relevance.
	LexicalSearch(ctx context.Context, query string, filter domain.SearchFilter, limit int) ([]domain.LexicalHit, error)

	// Candidates returns chunks of active documents matching the filter,
	// with the embedding of the requested space (nil when missing).
	// Chunk text is not loaded.
	Candidates(ctx context.Context, filter domain.SearchFilter, space domain.EmbeddingSpace) ([]domain.Candidate, error)

	// CandidateDetails returns document title and chunk content keyed by
	// chunk ID. Unknown IDs are absent from the map.
	CandidateDetails(ctx context.Context, chunkIDs []string) (map[string]domain.CandidateDetail, error)

	// AcceleratorEntries returns the denormalised mirror rows of all chunks
	// of active documents.
	AcceleratorEntries(ctx context.Context) ([]domain.AcceleratorEntry, error)

	// ListEligible returns active documents with missing or below-threshold
	// completeness, least complete first.
	ListEligible(ctx context.Context, threshold int, category domain.Category, limit int) ([]domain.KnowledgeDocument, error)

	// CountEligible counts eligible documents per category.
	CountEligible(ctx context.Context, threshold int) (*domain.EligibleCounts, error)

	// ListUnindexed returns active documents without chunks, oldest first.
	ListUnindexed(ctx context.Context, limit int) ([]domain.KnowledgeDocument, error)
}
