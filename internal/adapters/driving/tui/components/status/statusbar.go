// Package status provides the status bar component for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/styles"
)

// State represents what the status bar reports on the left.
type State string

// Status bar states.
const (
	StateReady     State = "ready"
	StateSearching State = "searching"
	StateLoading   State = "loading"
	StateResults   State = "results"
	StateError     State = "error"
)

// Bar displays the current state and keybinding hints.
type Bar struct {
	styles   *styles.Styles
	state    State
	message  string
	hitCount int
	filter   string
	hints    []key.Binding
	width    int
}

// NewBar creates a status bar in the ready state.
func NewBar(s *styles.Styles) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &Bar{styles: s, state: StateReady, width: 80}
}

// View renders the status bar.
func (b *Bar) View() string {
	left := b.renderLeft()
	right := b.renderRight()
	padding := max(b.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return b.styles.StatusBar.Render(left + strings.Repeat(" ", padding) + right)
}

func (b *Bar) renderLeft() string {
	var text string
	switch b.state {
	case StateSearching:
		text = b.styles.Muted.Render("Searching...")
	case StateLoading:
		text = b.styles.Muted.Render("Loading document...")
	case StateError:
		text = b.styles.Error.Render("Error: " + b.message)
	case StateResults:
		text = b.styles.Normal.Render(fmt.Sprintf("%d results", b.hitCount))
	case StateReady:
		text = b.styles.Muted.Render("Ready")
	}
	if b.state != StateError && b.message != "" {
		text += b.styles.Muted.Render("  " + b.message)
	}
	if b.filter != "" {
		text += "  " + b.styles.Warning.Render(b.filter)
	}
	return text
}

func (b *Bar) renderRight() string {
	hints := make([]string, 0, len(b.hints))
	for _, binding := range b.hints {
		h := binding.Help()
		hints = append(hints, h.Key+": "+h.Desc)
	}
	return b.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (b *Bar) SetState(state State) {
	b.state = state
}

// State returns the current state.
func (b *Bar) State() State {
	return b.state
}

// SetMessage sets the message shown next to the state.
func (b *Bar) SetMessage(message string) {
	b.message = message
}

// SetHitCount sets the number of hits reported in the results state.
func (b *Bar) SetHitCount(n int) {
	b.hitCount = n
}

// SetFilter sets the active filter description. Empty hides it.
func (b *Bar) SetFilter(filter string) {
	b.filter = filter
}

// SetHints sets the keybinding hints on the right.
func (b *Bar) SetHints(hints []key.Binding) {
	b.hints = hints
}

// SetWidth sets the status bar width.
func (b *Bar) SetWidth(width int) {
	b.width = width
}
