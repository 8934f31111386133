// Package messages defines Bubbletea message types for the TUI.
package messages

import (
	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewSearch is the query input and ranked hits.
	ViewSearch ViewType = iota
	// ViewDocument shows the text of one document.
	ViewDocument
	// ViewHelp lists the keybindings.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewSearch:
		return "search"
	case ViewDocument:
		return "document"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// SearchCompleted carries ranked hits back to the model.
type SearchCompleted struct {
	Query string
	Hits  []domain.HybridHit
	Err   error
}

// HitOpened asks for the document behind a hit.
type HitOpened struct {
	Hit domain.HybridHit
}

// DocumentLoaded carries a document and its chunk count.
type DocumentLoaded struct {
	Document   *domain.KnowledgeDocument
	ChunkCount int
	// ChunkID is the hit the document was opened from.
	ChunkID string
	Err     error
}

// FilterChanged is sent when the document type filter is cycled.
// An empty DocType means no filter.
type FilterChanged struct {
	DocType domain.DocumentType
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
