package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/views/document"
	"github.com/custodia-labs/lexindex/internal/adapters/driving/tui/views/search"
	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// Options configure the initial search of the browser.
type Options = search.Options

// App is the browser's root model following the Elm architecture.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap
	help   help.Model
	query  string

	searchView   *search.View
	documentView *document.View

	currentView messages.ViewType
	width       int
	height      int
	ready       bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates the browser. The initial query, if any, runs on start.
func NewApp(ports *Ports, opts Options) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	h := help.New()
	h.ShowAll = true

	return &App{
		ports:        ports,
		ctx:          context.Background(),
		styles:       s,
		keymap:       km,
		help:         h,
		searchView:   search.NewView(s, km, ports.Search, opts),
		documentView: document.NewView(s, km),
		currentView:  messages.ViewSearch,
	}, nil
}

// WithContext sets the context for searches and document loads.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.searchView.WithContext(ctx)
	return a
}

// WithQuery prefills the query input and runs it on start.
func (a *App) WithQuery(query string) *App {
	a.query = strings.TrimSpace(query)
	a.searchView.SetQuery(a.query)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{tea.SetWindowTitle("lexindex"), a.searchView.Init()}
	if a.query != "" {
		cmds = append(cmds, a.searchView.Submit(a.query))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.currentView {
		case messages.ViewSearch:
			a.searchView, cmd = a.searchView.Update(msg)
		case messages.ViewDocument:
			a.documentView, cmd = a.documentView.Update(msg)
		case messages.ViewHelp:
			a.currentView = messages.ViewSearch
		}
		return a, cmd

	case messages.ViewChanged:
		a.currentView = msg.View
		return a, nil

	case messages.HitOpened:
		return a, a.loadDocument(msg.Hit)

	case messages.DocumentLoaded:
		if msg.Err != nil {
			a.searchView.LoadFailed(msg.Err)
			a.currentView = messages.ViewSearch
			return a, nil
		}
		a.documentView.SetDocument(msg.Document, msg.ChunkCount)
		a.currentView = messages.ViewDocument
		return a, nil

	case messages.Quit:
		return a, tea.Quit
	}

	switch a.currentView {
	case messages.ViewDocument:
		a.documentView, cmd = a.documentView.Update(msg)
	default:
		a.searchView, cmd = a.searchView.Update(msg)
	}
	return a, cmd
}

// loadDocument fetches the document behind a hit and counts its chunks.
func (a *App) loadDocument(hit domain.HybridHit) tea.Cmd {
	ctx, reader := a.ctx, a.ports.Documents
	return func() tea.Msg {
		doc, err := reader.Get(ctx, hit.DocumentID)
		if err != nil {
			return messages.DocumentLoaded{ChunkID: hit.ChunkID, Err: fmt.Errorf("opening %q: %w", hit.Title, err)}
		}
		chunks, err := reader.Chunks(ctx, hit.DocumentID)
		if err != nil {
			return messages.DocumentLoaded{ChunkID: hit.ChunkID, Err: fmt.Errorf("loading chunks: %w", err)}
		}
		return messages.DocumentLoaded{Document: doc, ChunkCount: len(chunks), ChunkID: hit.ChunkID}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}
	switch a.currentView {
	case messages.ViewDocument:
		return a.documentView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	default:
		return a.searchView.View()
	}
}

func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Keys"))
	b.WriteString("\n\n")
	b.WriteString(a.help.View(a.keymap))
	b.WriteString("\n\n")
	b.WriteString(a.styles.Muted.Render("In the reader: space/b page, u/d half page. Any key returns."))
	return b.String()
}

// Run starts the browser on the alternate screen.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// SetDimensions sets the terminal dimensions on every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.help.Width = width
	a.searchView.SetDimensions(width, height)
	a.documentView.SetDimensions(width, height)
}

// CurrentView returns the active view.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// SearchView returns the search view.
func (a *App) SearchView() *search.View {
	return a.searchView
}

// DocumentView returns the document reader.
func (a *App) DocumentView() *document.View {
	return a.documentView
}
