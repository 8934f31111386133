package html

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
	"github.com/custodia-labs/lexindex/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise extracts the title and readable text of an HTML page.
// When readability finds no main content the whole body is used.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.NormalisedText, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	page, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", domain.ErrInvalidInput, err)
	}

	title := strings.TrimSpace(page.Find("title").First().Text())
	content := page.Selection

	pageURL, err := url.Parse(raw.URI)
	if err != nil {
		pageURL = &url.URL{}
	}
	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(raw.Content), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		if doc, perr := goquery.NewDocumentFromReader(strings.NewReader(article.Content)); perr == nil {
			content = doc.Selection
		}
		if article.Title != "" {
			title = strings.TrimSpace(article.Title)
		}
	}

	if title == "" {
		title = plaintext.Title(raw.Name, raw.URI)
	}

	return &domain.NormalisedText{
		Title: title,
		Text:  Text(content),
	}, nil
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true,
	"head": true, "nav": true, "iframe": true, "template": true,
}

var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "table": true, "tr": true,
	"blockquote": true, "pre": true, "header": true, "footer": true,
	"dd": true, "dt": true, "hr": true,
}

// Text flattens a selection to plain text. Block elements become
// paragraphs separated by a blank line and each table row becomes one paragraph.
// Source line breaks inside text are folded into spaces except within <pre>;
// only <br> and block boundaries start new lines.
func Text(s *goquery.Selection) string {
	var b strings.Builder
	writeText(s, &b, false)
	return collapse(b.String())
}

func writeText(s *goquery.Selection, b *strings.Builder, pre bool) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		switch {
		case name == "#text":
			if pre {
				b.WriteString(c.Text())
			} else {
				b.WriteString(foldSpace(c.Text()))
			}
		case skipTags[name]:
		case name == "br":
			b.WriteString("\n")
		case name == "td" || name == "th":
			writeText(c, b, pre)
			b.WriteString(" ")
		case blockTags[name]:
			b.WriteString("\n\n")
			writeText(c, b, pre || name == "pre")
			b.WriteString("\n\n")
		default:
			writeText(c, b, pre)
		}
	})
}

// foldSpace turns every whitespace run, newlines included, into one space.
func foldSpace(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		b.WriteRune(r)
		space = false
	}
	return b.String()
}

// collapse trims every line, squeezes inner spaces and keeps at most one
// blank line between paragraphs.
func collapse(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
