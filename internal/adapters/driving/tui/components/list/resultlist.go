// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// linesPerHit is the rendered height of one hit: title, meta, snippet.
const linesPerHit = 3

// HitList displays ranked hits in a navigable list.
type HitList struct {
	hits     []domain.HybridHit
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewHitList creates an empty hit list.
func NewHitList(s *styles.Styles) *HitList {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &HitList{styles: s, width: 80, height: 12}
}

// View renders the visible window of hits around the selection.
func (l *HitList) View() string {
	if len(l.hits) == 0 {
		return l.styles.Muted.Render("No results")
	}

	lines := make([]string, 0, len(l.hits)*linesPerHit+2)
	lines = append(lines, l.styles.Subtitle.Render(fmt.Sprintf("Results (%d)", len(l.hits))), "")

	visible := max((l.height-2)/linesPerHit, 1)
	start := 0
	if l.selected >= visible {
		start = l.selected - visible + 1
	}
	end := min(start+visible, len(l.hits))

	for i := start; i < end; i++ {
		lines = append(lines, l.renderHit(i, &l.hits[i]))
	}
	return strings.Join(lines, "\n")
}

func (l *HitList) renderHit(index int, hit *domain.HybridHit) string {
	indicator := "  "
	if index == l.selected {
		indicator = "> "
	}

	title := hit.Title
	if title == "" {
		title = "(untitled)"
	}
	title = truncate(title, max(l.width-16, 10))
	score := fmt.Sprintf("%.3f", hit.HybridScore)

	var titleLine string
	if index == l.selected {
		titleLine = l.styles.Selected.Render(indicator+title) + "  " + l.styles.Normal.Render(score)
	} else {
		titleLine = l.styles.Normal.Render(indicator+title) + "  " + l.styles.Muted.Render(score)
	}

	meta := fmt.Sprintf("    %s %s  sim %.3f  lex %.3f",
		l.styles.Badge(hit.DocType), hit.Category, hit.Similarity, hit.LexicalRank)
	snippet := strings.Join(strings.Fields(hit.ContentSnippet), " ")
	snippetLine := l.styles.Muted.Render("    " + truncate(snippet, max(l.width-6, 20)))

	return titleLine + "\n" + meta + "\n" + snippetLine
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// SetHits replaces the hits and resets the selection.
func (l *HitList) SetHits(hits []domain.HybridHit) {
	l.hits = hits
	l.selected = 0
}

// Hits returns the current hits.
func (l *HitList) Hits() []domain.HybridHit {
	return l.hits
}

// Selected returns the index of the selected hit.
func (l *HitList) Selected() int {
	return l.selected
}

// SelectedHit returns the selected hit, or nil when the list is empty.
func (l *HitList) SelectedHit() *domain.HybridHit {
	if l.selected < 0 || l.selected >= len(l.hits) {
		return nil
	}
	return &l.hits[l.selected]
}

// MoveUp moves the selection up.
func (l *HitList) MoveUp() {
	if l.selected > 0 {
		l.selected--
	}
}

// MoveDown moves the selection down.
func (l *HitList) MoveDown() {
	if l.selected < len(l.hits)-1 {
		l.selected++
	}
}

// SetDimensions sets the component dimensions.
func (l *HitList) SetDimensions(width, height int) {
	l.width = width
	l.height = height
}
