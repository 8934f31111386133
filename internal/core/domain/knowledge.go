package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Category is the legal taxonomy bucket of a knowledge document.
type Category string

// Legal categories.
const (
	CategoryLegislation   Category = "legislation"
	CategoryCodes         Category = "codes"
	CategoryConstitution  Category = "constitution"
	CategoryConventions   Category = "conventions"
	CategoryJORT          Category = "jort"
	CategoryJurisprudence Category = "jurisprudence"
	CategoryProcedures    Category = "procedures"
	CategoryFormulaires   Category = "formulaires"
	CategoryModeles       Category = "modeles"
	CategoryDoctrine      Category = "doctrine"
	CategoryGuides        Category = "guides"
	CategoryLexique       Category = "lexique"
	CategoryActualites    Category = "actualites"
	CategoryGoogleDrive   Category = "google_drive"
	CategoryAutre         Category = "autre"
)

// DocumentType groups categories by the nature of the legal knowledge.
type DocumentType string

// Document types.
const (
	DocTypeTextes    DocumentType = "TEXTES"
	DocTypeJuris     DocumentType = "JURIS"
	DocTypeProc      DocumentType = "PROC"
	DocTypeTemplates DocumentType = "TEMPLATES"
	DocTypeDoctrine  DocumentType = "DOCTRINE"
)

var categoryDocTypes = map[Category]DocumentType{
	CategoryLegislation:   DocTypeTextes,
	CategoryCodes:         DocTypeTextes,
	CategoryConstitution:  DocTypeTextes,
	CategoryConventions:   DocTypeTextes,
	CategoryJORT:          DocTypeTextes,
	CategoryJurisprudence: DocTypeJuris,
	CategoryProcedures:    DocTypeProc,
	CategoryFormulaires:   DocTypeProc,
	CategoryModeles:       DocTypeTemplates,
	CategoryDoctrine:      DocTypeDoctrine,
	CategoryGuides:        DocTypeDoctrine,
	CategoryLexique:       DocTypeDoctrine,
	CategoryActualites:    DocTypeDoctrine,
	CategoryGoogleDrive:   DocTypeTemplates,
	CategoryAutre:         DocTypeDoctrine,
}

// IsValid returns true if the category is part of the taxonomy.
func (c Category) IsValid() bool {
	_, ok := categoryDocTypes[c]
	return ok
}

// DocType returns the document type the category belongs to.
// Unknown categories map to DOCTRINE, like autre.
func (c Category) DocType() DocumentType {
	if dt, ok := categoryDocTypes[c]; ok {
		return dt
	}
	return DocTypeDoctrine
}

// IsValid returns true if the document type is recognised.
func (d DocumentType) IsValid() bool {
	switch d {
	case DocTypeTextes, DocTypeJuris, DocTypeProc, DocTypeTemplates, DocTypeDoctrine:
		return true
	default:
		return false
	}
}

// Language is the detected language of a document.
type Language string

// Supported languages.
const (
	LanguageArabic  Language = "ar"
	LanguageFrench  Language = "fr"
	LanguageUnknown Language = ""
)

// MinIndexableLength is the minimum text length accepted for indexing.
const MinIndexableLength = 50

// KnowledgeDocument is one ingested unit of content.
type KnowledgeDocument struct {
	// ID is the unique identifier for the document.
	ID string

	// SourceID links to the Source the document was crawled from. Empty for uploads.
	SourceID string

	// RecordID links to the PageRecord the document was built from. Empty for uploads.
	RecordID string

	// Title is the human-readable title.
	Title string

	// Description is a short summary used for display and completeness.
	Description string

	// Category is the legal taxonomy bucket.
	Category Category

	// DocType is the document type, derived from Category unless set explicitly.
	DocType DocumentType

	// Language is the detected language.
	Language Language

	// Tags are free-form labels.
	Tags []string

	// SourceURL is a link to the original file or page.
	SourceURL string

	// FullText is the extracted plain text.
	FullText string

	// Active documents are searchable.
	Active bool

	// Indexed is true once chunks have been generated for the current text.
	Indexed bool

	// Completeness is the metadata completeness score (0-100). Nil until computed.
	Completeness *int

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last updated.
	UpdatedAt time.Time
}

// ComputeCompleteness scores how complete the document's metadata is, 0 to 100.
func (d *KnowledgeDocument) ComputeCompleteness() int {
	score := 0
	if strings.TrimSpace(d.Title) != "" {
		score += 15
	}
	if utf8.RuneCountInString(strings.TrimSpace(d.Description)) >= 30 {
		score += 25
	}
	if len(d.Tags) > 0 {
		score += 15
	}
	if d.Language != LanguageUnknown {
		score += 10
	}
	if d.DocType.IsValid() {
		score += 10
	}
	if d.Category.IsValid() && d.Category != CategoryAutre {
		score += 10
	}
	if utf8.RuneCountInString(d.FullText) >= 100 {
		score += 15
	}
	return score
}

// EmbeddingSpace names a provider/dimension space. Vectors from different
// spaces are never compared with each other.
type EmbeddingSpace string

// Supported embedding spaces, one chunk column each.
const (
	EmbeddingSpaceOllama EmbeddingSpace = "ollama"
	EmbeddingSpaceOpenAI EmbeddingSpace = "openai"
)

// IsValid returns true if the space has a storage column.
func (s EmbeddingSpace) IsValid() bool {
	return s == EmbeddingSpaceOllama || s == EmbeddingSpaceOpenAI
}

// Chunk is a bounded slice of a KnowledgeDocument's text.
// Positions are contiguous from zero within a document.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent KnowledgeDocument.
	DocumentID string

	// Position is the ordinal index within the document.
	Position int

	// Content is the text of this chunk.
	Content string

	// Embeddings holds at most one vector per embedding space.
	// A missing key means the column has not been populated yet.
	Embeddings map[EmbeddingSpace][]float32

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// Embedding returns the vector for a space, or nil if absent.
func (c *Chunk) Embedding(space EmbeddingSpace) []float32 {
	if c.Embeddings == nil {
		return nil
	}
	return c.Embeddings[space]
}

// SetEmbedding stores the vector for a space.
func (c *Chunk) SetEmbedding(space EmbeddingSpace, vector []float32) {
	if c.Embeddings == nil {
		c.Embeddings = make(map[EmbeddingSpace][]float32)
	}
	c.Embeddings[space] = vector
}

// EmbeddingStats aggregates embedding coverage over a document's chunks.
type EmbeddingStats struct {
	Total            int `json:"total"`
	WithOllama       int `json:"with_ollama"`
	WithOpenAI       int `json:"with_openai"`
	WithoutEmbedding int `json:"without_embedding"`
}
