// Package spreadsheet provides a Normaliser for Excel workbooks, including
// Google Sheets exported as xlsx. Each sheet becomes a titled block with
// one line per non-empty row.
package spreadsheet

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
	"github.com/custodia-labs/lexindex/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// MIMETypeXLSX is the Office Open XML workbook type.
const MIMETypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// cellSeparator joins the cells of a row.
const cellSeparator = " | "

// Normaliser handles xlsx workbooks.
type Normaliser struct{}

// New creates a new spreadsheet normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMETypeXLSX}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 60
}

// Normalise renders every sheet as text.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.NormalisedText, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", domain.ErrInvalidInput, err)
	}
	defer f.Close()

	var blocks []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if block := renderSheet(sheet, rows); block != "" {
			blocks = append(blocks, block)
		}
	}

	var title string
	if props, err := f.GetDocProps(); err == nil && props != nil {
		title = strings.TrimSpace(props.Title)
	}
	if title == "" {
		title = plaintext.Title(raw.Name, raw.URI)
	}

	return &domain.NormalisedText{
		Title: title,
		Text:  strings.Join(blocks, "\n\n"),
	}, nil
}

// renderSheet writes the sheet name then one line per row with at least one
// non-empty cell. Empty sheets render as "".
func renderSheet(name string, rows [][]string) string {
	var lines []string
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			if cell = strings.TrimSpace(cell); cell != "" {
				cells = append(cells, cell)
			}
		}
		if len(cells) > 0 {
			lines = append(lines, strings.Join(cells, cellSeparator))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return name + "\n" + strings.Join(lines, "\n")
}
