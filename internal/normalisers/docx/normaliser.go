package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
	"github.com/custodia-labs/lexindex/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser
}

// Normalise extracts the body of word/document.xml in reading order: one
// line per paragraph, one line per table row with cells separated by " | ",
// and a blank line before heading-styled paragraphs so the splitter can cut
// there. The title comes from docProps/core.xml, else from the file name.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.NormalisedText, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a docx archive: %v", domain.ErrInvalidInput, err)
	}

	part, err := readPart(reader, "word/document.xml")
	if err != nil {
		return nil, err
	}
	if part == nil {
		return nil, fmt.Errorf("%w: missing word/document.xml", domain.ErrInvalidInput)
	}
	content, err := bodyText(part)
	if err != nil {
		return nil, fmt.Errorf("%w: word/document.xml: %v", domain.ErrInvalidInput, err)
	}

	title := coreTitle(reader)
	if title == "" {
		title = plaintext.Title(raw.Name, raw.URI)
	}
	return &domain.NormalisedText{Title: title, Text: content}, nil
}

// maxPartSize bounds how much of one archive member is decompressed.
const maxPartSize = 64 << 20

// readPart returns the bytes of an archive member, or nil if it is absent.
func readPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", domain.ErrInvalidInput, name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrInvalidInput, name, err)
		}
		if len(data) > maxPartSize {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrFileTooLarge, name, maxPartSize)
		}
		return data, nil
	}
	return nil, nil
}

// bodyWriter accumulates document text while walking the XML tokens.
type bodyWriter struct {
	out       strings.Builder
	para      strings.Builder
	cells     []string
	heading   bool
	tableDeep int
}

func (b *bodyWriter) line(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if b.out.Len() > 0 {
		b.out.WriteByte('\n')
	}
	b.out.WriteString(s)
}

// endParagraph flushes the current paragraph into its cell or the output.
func (b *bodyWriter) endParagraph() {
	text := b.para.String()
	b.para.Reset()
	heading := b.heading
	b.heading = false
	if b.tableDeep > 0 {
		if n := len(b.cells); n > 0 {
			b.cells[n-1] = strings.TrimSpace(b.cells[n-1] + " " + strings.Join(strings.Fields(text), " "))
		}
		return
	}
	if heading && strings.TrimSpace(text) != "" && b.out.Len() > 0 {
		b.out.WriteByte('\n')
	}
	b.line(text)
}

func (b *bodyWriter) endRow() {
	var kept []string
	for _, c := range b.cells {
		if c != "" {
			kept = append(kept, c)
		}
	}
	b.cells = b.cells[:0]
	b.line(strings.Join(kept, " | "))
}

// bodyText walks word/document.xml. Only w:t text is kept, so deleted
// revisions (w:delText) and field codes (w:instrText) are dropped.
func bodyText(content []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))
	var b bodyWriter
	inText := false

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.para.WriteByte('\t')
			case "br", "cr":
				b.para.WriteByte('\n')
			case "pStyle":
				b.heading = isHeadingStyle(attr(t, "val"))
			case "tbl":
				b.tableDeep++
			case "tc":
				if b.tableDeep == 1 {
					b.cells = append(b.cells, "")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.endParagraph()
			case "tr":
				if b.tableDeep == 1 {
					b.endRow()
				}
			case "tbl":
				b.tableDeep--
			}
		case xml.CharData:
			if inText {
				b.para.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.out.String()), nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// isHeadingStyle matches Word's built-in heading and title styles in
// English and French installs.
func isHeadingStyle(style string) bool {
	style = strings.ToLower(style)
	for _, prefix := range []string{"heading", "titre", "title"} {
		if strings.HasPrefix(style, prefix) {
			return true
		}
	}
	return false
}

// coreXML represents the structure of docProps/core.xml.
type coreXML struct {
	Title string `xml:"title"`
}

// coreTitle reads the title from docProps/core.xml, if any.
func coreTitle(reader *zip.Reader) string {
	data, err := readPart(reader, "docProps/core.xml")
	if err != nil || data == nil {
		return ""
	}
	var core coreXML
	if err := xml.Unmarshal(data, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}
