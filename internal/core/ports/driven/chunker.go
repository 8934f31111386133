package driven

import "github.com/custodia-labs/lexindex/internal/core/domain"

// TextChunker splits a document's text into overlapping chunks.
type TextChunker interface {
	// Chunk returns chunks with contiguous positions starting at zero.
	Chunk(documentID, text string) []domain.Chunk

	// ChunkSections chunks sections in order with positions contiguous
	// across the whole document.
	ChunkSections(documentID string, sections []domain.Section) []domain.Chunk
}

// SectionSplitter divides long texts into titled sections.
type SectionSplitter interface {
	// Split returns the sections of a text, or a single section when the
	// text already fits.
	Split(text string) ([]domain.Section, error)
}
