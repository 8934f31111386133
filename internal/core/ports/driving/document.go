package driving

import (
	"context"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// IngestionService turns fetched files and uploaded texts into indexed documents.
type IngestionService interface {
	// IngestRecord downloads and indexes the file behind a page record.
	IngestRecord(ctx context.Context, source domain.Source, record domain.PageRecord) (*domain.KnowledgeDocument, error)

	// IngestText stores an uploaded text as a new document and indexes it.
	IngestText(ctx context.Context, doc domain.KnowledgeDocument) (*domain.KnowledgeDocument, error)

	// IngestUpload extracts the text of an uploaded file and ingests it with
	// the given metadata.
	IngestUpload(ctx context.Context, raw domain.RawDocument, meta domain.KnowledgeDocument) (*domain.KnowledgeDocument, error)

	// IndexDocument rebuilds the chunks and embeddings of a document.
	// Returns the number of chunks written.
	IndexDocument(ctx context.Context, documentID string) (int, error)

	// IndexPending indexes up to limit documents that have no chunks.
	IndexPending(ctx context.Context, limit int) (indexed, failed int, err error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.KnowledgeDocument, error)

	// Chunks returns a document's chunks ordered by position.
	Chunks(ctx context.Context, documentID string) ([]domain.Chunk, error)
}

// EmbeddingGenerator embeds chunks with the primary and fallback providers.
type EmbeddingGenerator interface {
	// EmbedChunks embeds the chunks in batches, falling back per item, and
	// stores every vector it obtains.
	EmbedChunks(ctx context.Context, chunks []domain.Chunk) (*domain.EmbedReport, error)

	// EmbedQuery embeds a query in the requested space.
	EmbedQuery(ctx context.Context, text string, space domain.EmbeddingSpace) ([]float32, error)

	// Backfill fills missing embeddings of one space.
	Backfill(ctx context.Context, opts domain.BackfillOptions) (*domain.BackfillResult, error)

	// Stats reports embedding coverage of a document's chunks.
	Stats(ctx context.Context, documentID string) (*domain.EmbeddingStats, error)
}

// ReprocessService enriches incomplete documents in batches.
type ReprocessService interface {
	// Reprocess runs one batch. In dry-run mode nothing is modified.
	Reprocess(ctx context.Context, opts domain.ReprocessOptions) (*domain.ReprocessResult, error)

	// EligibleCounts reports how many documents a run would consider.
	EligibleCounts(ctx context.Context, threshold int) (*domain.EligibleCounts, error)
}
