// Package chunker splits document text into overlapping chunks for embedding.
package chunker

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// Ensure Chunker implements the interface.
var _ driven.TextChunker = (*Chunker)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1200

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// boundaryWindow is the fraction of the chunk, counted from its end, searched
// for a natural break.
const boundaryWindow = 5

// Chunker splits text into chunks of at most chunkSize characters.
// Consecutive chunks share up to overlap characters.
type Chunker struct {
	chunkSize int
	overlap   int
	newID     func() string
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithIDGenerator replaces the uuid generator for chunk IDs.
func WithIDGenerator(fn func() string) Option {
	return func(c *Chunker) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		newID:     func() string { return uuid.New().String() },
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// FromSettings creates a chunker from the configured sizes.
func FromSettings(s domain.ChunkerSettings) *Chunker {
	return New(WithChunkSize(s.Size), WithOverlap(s.Overlap))
}

// Chunk splits text into chunks with positions 0..n-1.
// Blank text produces no chunks.
func (c *Chunker) Chunk(documentID, text string) []domain.Chunk {
	pieces := Split(text, c.chunkSize, c.overlap)
	if len(pieces) == 0 {
		return nil
	}

	chunks := make([]domain.Chunk, 0, len(pieces))
	for i, content := range pieces {
		chunks = append(chunks, domain.Chunk{
			ID:         c.newID(),
			DocumentID: documentID,
			Position:   i,
			Content:    content,
			Metadata:   make(map[string]any),
		})
	}
	return chunks
}

// ChunkSections chunks each section in order. Positions continue across
// sections so they stay contiguous for the whole document, and every chunk
// records the section it came from.
func (c *Chunker) ChunkSections(documentID string, sections []domain.Section) []domain.Chunk {
	var chunks []domain.Chunk
	for _, s := range sections {
		for _, chunk := range c.Chunk(documentID, s.Content) {
			chunk.Position = len(chunks)
			chunk.Metadata["section_index"] = s.Index
			chunk.Metadata["section_title"] = s.Title
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// Split cuts text into trimmed windows of at most size characters, each
// starting overlap characters before the previous one ended. A window ends at
// the last paragraph break, else line break, else sentence end found in its
// final fifth; without one it is cut at exactly size characters.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	runes := []rune(text)
	n := len(runes)

	var pieces []string
	start := 0
	for start < n {
		end := min(start+size, n)
		if end < n {
			end = boundary(runes, start, end, size)
		}

		if content := strings.TrimSpace(string(runes[start:end])); content != "" {
			pieces = append(pieces, content)
		}
		if end == n {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return pieces
}

// boundary returns the cut position for runes[start:end].
func boundary(runes []rune, start, end, size int) int {
	from := max(start+1, end-size/boundaryWindow)

	for i := end - 1; i > from; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i >= from; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i > from; i-- {
		if unicode.IsSpace(runes[i]) && isSentenceEnd(runes[i-1]) {
			return i + 1
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '؟', '؛':
		return true
	default:
		return false
	}
}
