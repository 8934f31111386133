// Package styles provides colour themes and styling for the TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// Theme defines the colour palette for the TUI.
type Theme struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Border     lipgloss.Color

	// DocTypes colours the type badge of a hit.
	DocTypes map[domain.DocumentType]lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:    lipgloss.Color("#333F50"), // Slate
		Secondary:  lipgloss.Color("#B08D57"), // Brass
		Foreground: lipgloss.Color("#E6E6E6"),
		Muted:      lipgloss.Color("#7B8088"),
		Success:    lipgloss.Color("#7FB685"),
		Warning:    lipgloss.Color("#E3C567"),
		Error:      lipgloss.Color("#E07A5F"),
		Border:     lipgloss.Color("#C7C8CC"),
		DocTypes: map[domain.DocumentType]lipgloss.Color{
			domain.DocTypeTextes:    lipgloss.Color("#5B8DEF"),
			domain.DocTypeJuris:     lipgloss.Color("#B08D57"),
			domain.DocTypeProc:      lipgloss.Color("#7FB685"),
			domain.DocTypeTemplates: lipgloss.Color("#C490D1"),
			domain.DocTypeDoctrine:  lipgloss.Color("#7B8088"),
		},
	}
}

// Styles contains pre-configured lipgloss styles.
type Styles struct {
	theme *Theme

	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	Normal     lipgloss.Style
	Muted      lipgloss.Style
	Selected   lipgloss.Style
	Error      lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	InputField lipgloss.Style
	StatusBar  lipgloss.Style
	Border     lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	return &Styles{
		theme: theme,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Secondary),

		Subtitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Foreground),

		Normal: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Foreground).
			Background(theme.Primary),

		Error: lipgloss.NewStyle().
			Foreground(theme.Error),

		Success: lipgloss.NewStyle().
			Foreground(theme.Success),

		Warning: lipgloss.NewStyle().
			Foreground(theme.Warning),

		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		StatusBar: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),

		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the theme used by these styles.
func (s *Styles) Theme() *Theme {
	return s.theme
}

// Badge renders a document type label in its colour. Unknown types use
// the muted colour.
func (s *Styles) Badge(docType domain.DocumentType) string {
	colour, ok := s.theme.DocTypes[docType]
	if !ok {
		colour = s.theme.Muted
	}
	label := string(docType)
	if label == "" {
		label = "?"
	}
	return lipgloss.NewStyle().Bold(true).Foreground(colour).Render("[" + label + "]")
}
