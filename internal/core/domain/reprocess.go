package domain

import "time"

// Batch re-processing defaults.
const (
	DefaultReprocessBatchSize    = 10
	MaxReprocessBatchSize        = 50
	DefaultCompletenessThreshold = 70
)

// ReprocessOptions are the recognised options of a batch re-processing run.
type ReprocessOptions struct {
	// BatchSize is the number of documents handled per run, capped at MaxReprocessBatchSize.
	BatchSize int `json:"batchSize"`

	// Category optionally restricts the run to one category.
	Category Category `json:"category,omitempty"`

	// CompletenessThreshold selects documents scoring strictly below it.
	CompletenessThreshold int `json:"completenessThreshold"`

	// ReprocessAfter re-indexes each document after enrichment.
	ReprocessAfter bool `json:"reprocessAfter"`

	// DryRun returns a preview without modifying anything.
	DryRun bool `json:"dryRun"`
}

// DefaultReprocessOptions returns the default options.
func DefaultReprocessOptions() ReprocessOptions {
	return ReprocessOptions{
		BatchSize:             DefaultReprocessBatchSize,
		CompletenessThreshold: DefaultCompletenessThreshold,
		ReprocessAfter:        true,
	}
}

// Normalise applies defaults and caps.
func (o ReprocessOptions) Normalise() ReprocessOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultReprocessBatchSize
	}
	if o.BatchSize > MaxReprocessBatchSize {
		o.BatchSize = MaxReprocessBatchSize
	}
	if o.CompletenessThreshold <= 0 {
		o.CompletenessThreshold = DefaultCompletenessThreshold
	}
	return o
}

// ReprocessItem is the outcome for one document.
type ReprocessItem struct {
	DocumentID           string        `json:"document_id"`
	Title                string        `json:"title"`
	Category             Category      `json:"category"`
	Success              bool          `json:"success"`
	PreviousCompleteness *int          `json:"previous_completeness"`
	NewCompleteness      int           `json:"new_completeness,omitempty"`
	ChunksIndexed        int           `json:"chunks_indexed,omitempty"`
	Error                string        `json:"error,omitempty"`
	Duration             time.Duration `json:"duration"`
}

// ReprocessResult is the outcome of a batch re-processing run.
type ReprocessResult struct {
	DryRun    bool            `json:"dry_run"`
	Selected  int             `json:"selected"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Items     []ReprocessItem `json:"items"`
}

// EligibleCounts reports how many documents a run would consider.
type EligibleCounts struct {
	Threshold  int              `json:"threshold"`
	Total      int              `json:"total"`
	ByCategory map[Category]int `json:"by_category"`
}

// Backfill defaults.
const (
	DefaultBackfillBatchSize = 50
	DefaultBackfillItemDelay = 20 * time.Millisecond
	DefaultBackfillPause     = time.Second
)

// BackfillOptions controls an embedding backfill run.
type BackfillOptions struct {
	// Space is the embedding column to populate.
	Space EmbeddingSpace

	// BatchSize is the number of chunks per batch.
	BatchSize int

	// Category optionally restricts to one category.
	Category Category

	// MaxChunks bounds the run. Zero means unlimited.
	MaxChunks int

	// ItemDelay is the pause after each embedded chunk.
	ItemDelay time.Duration

	// BatchPause is the pause between batches.
	BatchPause time.Duration
}

// BackfillResult is the outcome of a backfill run.
type BackfillResult struct {
	Space     EmbeddingSpace `json:"space"`
	Total     int            `json:"total"`
	Processed int            `json:"processed"`
	Failed    int            `json:"failed"`
	Duration  time.Duration  `json:"duration"`
}

// EmbedFailure is one chunk that could not be embedded by any provider.
type EmbedFailure struct {
	ChunkID string
	Error   string
}

// EmbedReport is the outcome of embedding a set of chunks.
type EmbedReport struct {
	Primary  int
	Fallback int
	Failed   []EmbedFailure
}
