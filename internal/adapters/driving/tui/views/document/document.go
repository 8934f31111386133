// Package document provides the scrolling reader for one knowledge document.
package document

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// headerLines is the height reserved above the viewport.
const headerLines = 6

// View shows a document's metadata above its scrollable full text.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	viewport  viewport.Model
	statusbar *status.Bar

	doc        *domain.KnowledgeDocument
	chunkCount int
	width      int
	height     int
}

// NewView creates an empty document view.
func NewView(s *styles.Styles, km *keymap.KeyMap) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	bar := status.NewBar(s)
	bar.SetHints(km.DocumentHelp())
	return &View{
		styles:    s,
		keymap:    km,
		viewport:  viewport.New(80, 24-headerLines-2),
		statusbar: bar,
		width:     80,
		height:    24,
	}
}

// SetDocument loads a document into the reader and scrolls to the top.
func (v *View) SetDocument(doc *domain.KnowledgeDocument, chunkCount int) {
	v.doc = doc
	v.chunkCount = chunkCount
	v.viewport.SetContent(v.body())
	v.viewport.GotoTop()
}

// Document returns the loaded document.
func (v *View) Document() *domain.KnowledgeDocument {
	return v.doc
}

// Update scrolls the text and handles leaving the reader.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, v.keymap.Back):
			return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewSearch} }
		case key.Matches(msg, v.keymap.Quit):
			return v, func() tea.Msg { return messages.Quit{} }
		}
	}

	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return v, cmd
}

// View renders the reader.
func (v *View) View() string {
	if v.doc == nil {
		return v.styles.Muted.Render("No document loaded")
	}
	v.statusbar.SetMessage(fmt.Sprintf("%3.f%%", v.viewport.ScrollPercent()*100))
	return lipgloss.JoinVertical(lipgloss.Left, v.header(), v.viewport.View(), v.statusbar.View())
}

func (v *View) header() string {
	d := v.doc
	title := d.Title
	if title == "" {
		title = "(untitled)"
	}

	meta := []string{string(d.Category)}
	if d.Language != domain.LanguageUnknown {
		meta = append(meta, string(d.Language))
	}
	meta = append(meta, fmt.Sprintf("%d chunks", v.chunkCount))
	if d.Completeness != nil {
		meta = append(meta, fmt.Sprintf("completeness %d", *d.Completeness))
	}
	if !d.UpdatedAt.IsZero() {
		meta = append(meta, "updated "+d.UpdatedAt.Format("2006-01-02"))
	}

	lines := []string{
		v.styles.Title.Render(title),
		v.styles.Badge(d.DocType) + " " + v.styles.Muted.Render(strings.Join(meta, " · ")),
	}
	if d.SourceURL != "" {
		lines = append(lines, v.styles.Muted.Render(d.SourceURL))
	}
	if d.Description != "" {
		lines = append(lines, v.styles.Normal.Italic(true).Render(d.Description))
	}
	return lipgloss.NewStyle().Width(v.width).Render(strings.Join(lines, "\n")) + "\n"
}

func (v *View) body() string {
	if v.doc == nil {
		return ""
	}
	return lipgloss.NewStyle().Width(max(v.width-2, 20)).Render(v.doc.FullText)
}

// SetDimensions resizes the reader and rewraps the text.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.viewport.Width = width
	v.viewport.Height = max(height-headerLines-2, 3)
	v.statusbar.SetWidth(width)
	if v.doc != nil {
		v.viewport.SetContent(v.body())
	}
}
