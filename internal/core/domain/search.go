package domain

import "time"

// FusionMode selects how vector similarity and lexical rank are combined.
type FusionMode string

// Available fusion modes.
const (
	// FusionWeighted is a weighted sum of similarity and normalised lexical rank.
	FusionWeighted FusionMode = "weighted"

	// FusionRRF is Reciprocal Rank Fusion over the two ranked lists.
	FusionRRF FusionMode = "rrf"
)

// IsValid returns true if the fusion mode is recognised.
func (m FusionMode) IsValid() bool {
	return m == FusionWeighted || m == FusionRRF
}

// Default retrieval parameters.
const (
	DefaultSearchLimit   = 10
	MaxSearchLimit       = 100
	DefaultVectorWeight  = 0.7
	DefaultLexicalWeight = 0.3
	DefaultRRFConstant   = 60
)

// SearchFilter restricts candidates. Empty fields impose no constraint
// and non-empty fields are combined with AND.
type SearchFilter struct {
	Category Category
	DocType  DocumentType
	Language Language
}

// HybridQuery is a retrieval request.
type HybridQuery struct {
	// Query is the free-text query.
	Query string

	// Embedding is an optional precomputed query vector in the chosen space.
	Embedding []float32

	// Filter restricts candidates by category and document type.
	Filter SearchFilter

	// Limit is the maximum number of results.
	Limit int

	// Threshold drops candidates whose similarity is below it. Zero accepts all.
	Threshold float64

	// UseFallbackProvider selects the fallback embedding space.
	UseFallbackProvider bool
}

// HybridHit is one ranked chunk.
type HybridHit struct {
	DocumentID     string       `json:"document_id"`
	ChunkID        string       `json:"chunk_id"`
	Title          string       `json:"title"`
	Category       Category     `json:"category"`
	DocType        DocumentType `json:"doc_type"`
	ContentSnippet string       `json:"content_snippet"`
	Similarity     float64      `json:"similarity"`
	LexicalRank    float64      `json:"lexical_rank"`
	HybridScore    float64      `json:"hybrid_score"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// LexicalHit is a chunk matched by full-text search. Score is larger for
// better matches.
type LexicalHit struct {
	ChunkID string
	Score   float64
}

// Candidate holds what ranking needs to know about a chunk. Text is
// loaded separately, for the ranked hits only.
type Candidate struct {
	ChunkID    string
	DocumentID string
	Category   Category
	DocType    DocumentType
	Embedding  []float32
	UpdatedAt  time.Time
}

// CandidateDetail is the display text of a ranked chunk.
type CandidateDetail struct {
	Title   string
	Content string
}

// AcceleratorEntry is the denormalised mirror of a chunk.
type AcceleratorEntry struct {
	ChunkID    string
	DocumentID string
	Title      string
	Content    string
	Category   Category
	DocType    DocumentType
	Language   Language
}

// AcceleratorQuery is a filtered lexical lookup against the accelerator.
type AcceleratorQuery struct {
	// Text is the free-text query. Empty matches everything.
	Text   string
	Filter SearchFilter
	Limit  int
}

// AcceleratorHit is one accelerator match.
type AcceleratorHit struct {
	ChunkID    string
	DocumentID string
	Category   Category
	Language   Language
	Content    string
	Score      float64
}

// AcceleratorStats describes the accelerator's index.
type AcceleratorStats struct {
	Enabled    bool   `json:"enabled"`
	IndexName  string `json:"index_name,omitempty"`
	NumDocs    int64  `json:"num_docs"`
	NumRecords int64  `json:"num_records"`
}
