// Package search provides the query and results view for the TUI.
package search

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driving"
)

// docTypeCycle is the order the type filter steps through.
var docTypeCycle = []domain.DocumentType{
	"",
	domain.DocTypeTextes,
	domain.DocTypeJuris,
	domain.DocTypeProc,
	domain.DocTypeTemplates,
	domain.DocTypeDoctrine,
}

// Options seed the query parameters of the view.
type Options struct {
	Filter    domain.SearchFilter
	Limit     int
	Threshold float64
}

// View is the query input, the ranked hits and the status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QueryInput
	list      *list.HitList
	statusbar *status.Bar

	searchService driving.SearchService
	ctx           context.Context
	opts          Options
	useFallback   bool
	lastQuery     string

	width      int
	height     int
	err        error
	focusInput bool
}

// NewView creates a search view. Nil styles or keymap use the defaults.
func NewView(s *styles.Styles, km *keymap.KeyMap, searchService driving.SearchService, opts Options) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	v := &View{
		styles:        s,
		keymap:        km,
		input:         input.NewQueryInput(s),
		list:          list.NewHitList(s),
		statusbar:     status.NewBar(s),
		searchService: searchService,
		ctx:           context.Background(),
		opts:          opts,
		width:         80,
		height:        24,
		focusInput:    true,
	}
	v.statusbar.SetHints(km.InputHelp())
	v.statusbar.SetFilter(v.filterLabel())
	return v
}

// WithContext sets the context searches run under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init starts the input cursor.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the search view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.SearchCompleted:
		v.handleSearchCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if v.focusInput {
		return v.handleInputKey(msg)
	}

	switch {
	case key.Matches(msg, v.keymap.Open):
		hit := v.list.SelectedHit()
		if hit == nil {
			return v, nil
		}
		v.statusbar.SetState(status.StateLoading)
		opened := *hit
		return v, func() tea.Msg { return messages.HitOpened{Hit: opened} }
	case key.Matches(msg, v.keymap.Up):
		v.list.MoveUp()
	case key.Matches(msg, v.keymap.Down):
		v.list.MoveDown()
	case key.Matches(msg, v.keymap.NewSearch), key.Matches(msg, v.keymap.Back):
		v.focusInput = true
		v.statusbar.SetHints(v.keymap.InputHelp())
		if key.Matches(msg, v.keymap.NewSearch) {
			v.input.SetValue("")
		}
		return v, v.input.Focus()
	case key.Matches(msg, v.keymap.Filter):
		v.cycleDocType()
		return v, v.rerun()
	case key.Matches(msg, v.keymap.Fallback):
		v.useFallback = !v.useFallback
		v.statusbar.SetFilter(v.filterLabel())
		return v, v.rerun()
	case key.Matches(msg, v.keymap.Help):
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewHelp} }
	case key.Matches(msg, v.keymap.Quit):
		return v, func() tea.Msg { return messages.Quit{} }
	}
	return v, nil
}

func (v *View) handleInputKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	//nolint:exhaustive // only submit and leave are special while typing
	switch msg.Type {
	case tea.KeyEnter:
		query := strings.TrimSpace(v.input.Value())
		if query == "" {
			return v, nil
		}
		return v, v.Submit(query)
	case tea.KeyEsc:
		if len(v.list.Hits()) > 0 {
			v.enterResultsMode()
			return v, nil
		}
		return v, func() tea.Msg { return messages.Quit{} }
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// Submit runs query and switches to the results.
func (v *View) Submit(query string) tea.Cmd {
	v.lastQuery = query
	v.err = nil
	v.statusbar.SetState(status.StateSearching)
	v.statusbar.SetMessage("")
	v.enterResultsMode()
	return v.performSearch(query)
}

// rerun repeats the last query after a filter change.
func (v *View) rerun() tea.Cmd {
	if v.lastQuery == "" {
		return nil
	}
	return v.Submit(v.lastQuery)
}

func (v *View) enterResultsMode() {
	v.focusInput = false
	v.input.Blur()
	v.statusbar.SetHints(v.keymap.ResultsHelp())
}

func (v *View) cycleDocType() {
	next := 0
	for i, dt := range docTypeCycle {
		if dt == v.opts.Filter.DocType {
			next = (i + 1) % len(docTypeCycle)
			break
		}
	}
	v.opts.Filter.DocType = docTypeCycle[next]
	v.statusbar.SetFilter(v.filterLabel())
}

// filterLabel describes the active filters for the status bar.
func (v *View) filterLabel() string {
	var parts []string
	if v.opts.Filter.Category != "" {
		parts = append(parts, "category="+string(v.opts.Filter.Category))
	}
	if v.opts.Filter.DocType != "" {
		parts = append(parts, "type="+string(v.opts.Filter.DocType))
	}
	if v.opts.Filter.Language != "" {
		parts = append(parts, "lang="+string(v.opts.Filter.Language))
	}
	if v.useFallback {
		parts = append(parts, "fallback")
	}
	return strings.Join(parts, " ")
}

// Query returns the HybridQuery the view would run for query.
func (v *View) Query(query string) domain.HybridQuery {
	return domain.HybridQuery{
		Query:               query,
		Filter:              v.opts.Filter,
		Limit:               v.opts.Limit,
		Threshold:           v.opts.Threshold,
		UseFallbackProvider: v.useFallback,
	}
}

func (v *View) performSearch(query string) tea.Cmd {
	q := v.Query(query)
	return func() tea.Msg {
		if v.searchService == nil {
			return messages.ErrorOccurred{Err: ErrNoSearchService}
		}
		hits, err := v.searchService.HybridSearch(v.ctx, q)
		return messages.SearchCompleted{Query: query, Hits: hits, Err: err}
	}
}

func (v *View) handleSearchCompleted(msg messages.SearchCompleted) {
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}
	v.err = nil
	v.list.SetHits(msg.Hits)
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetHitCount(len(msg.Hits))
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// View renders the search view.
func (v *View) View() string {
	sections := make([]string, 0, 8)
	sections = append(sections, v.styles.Title.Render("lexindex"), "", v.input.View(), "")
	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}
	sections = append(sections, v.list.View(), "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-9)
	v.statusbar.SetWidth(width)
}

// LoadFailed reports a document that could not be opened.
func (v *View) LoadFailed(err error) {
	v.setError(err)
}

// Hits returns the current hits.
func (v *View) Hits() []domain.HybridHit {
	return v.list.Hits()
}

// SelectedIndex returns the index of the selected hit.
func (v *View) SelectedIndex() int {
	return v.list.Selected()
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// InputFocused returns whether the query input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}

// Filter returns the active filter.
func (v *View) Filter() domain.SearchFilter {
	return v.opts.Filter
}

// SetQuery sets the text of the query input.
func (v *View) SetQuery(query string) {
	v.input.SetValue(query)
}
