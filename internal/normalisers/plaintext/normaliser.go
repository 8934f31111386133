package plaintext

import (
	"context"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents, including Google Docs and
// Slides exported as text.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"text/tab-separated-values",
		"text/rtf",
		"application/json",
		"application/xml",
		"text/xml",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise decodes the raw bytes as UTF-8 text.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.NormalisedText, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	return &domain.NormalisedText{
		Title: Title(raw.Name, raw.URI),
		Text:  Clean(string(raw.Content)),
	}, nil
}

// Clean drops a byte order mark, unifies line endings and trims the text.
func Clean(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}

// Title derives a human-readable title from a file name, or from the URI
// when the name is empty.
func Title(name, uri string) string {
	filename := name
	if filename == "" && uri != "" {
		filename = filepath.Base(uri)
	}

	// Remove the extension for a cleaner title. "Loi 2.15" keeps its number.
	if ext := filepath.Ext(filename); len(ext) > 1 && len(ext) <= 5 && strings.IndexFunc(ext, unicode.IsLetter) >= 0 {
		filename = strings.TrimSuffix(filename, ext)
	}

	filename = strings.ReplaceAll(filename, "_", " ")
	return strings.TrimSpace(filename)
}
