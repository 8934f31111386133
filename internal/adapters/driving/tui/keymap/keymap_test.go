package keymap

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestDefaultKeyMap(t *testing.T) {
	km := DefaultKeyMap()

	tests := []struct {
		name    string
		msg     tea.KeyMsg
		binding key.Binding
	}{
		{"enter opens", tea.KeyMsg{Type: tea.KeyEnter}, km.Open},
		{"slash starts a new search", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")}, km.NewSearch},
		{"t cycles the filter", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")}, km.Filter},
		{"j moves down", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")}, km.Down},
		{"up arrow moves up", tea.KeyMsg{Type: tea.KeyUp}, km.Up},
		{"esc goes back", tea.KeyMsg{Type: tea.KeyEsc}, km.Back},
		{"ctrl+c quits", tea.KeyMsg{Type: tea.KeyCtrlC}, km.Quit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, key.Matches(tt.msg, tt.binding))
		})
	}
}

func TestKeyMap_HelpGroups(t *testing.T) {
	km := DefaultKeyMap()
	assert.Len(t, km.ShortHelp(), 2)
	assert.Len(t, km.InputHelp(), 2)
	assert.Contains(t, km.ResultsHelp(), km.Filter)
	assert.Len(t, km.FullHelp(), 3)
}
