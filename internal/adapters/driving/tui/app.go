// Package tui provides an interactive terminal search view over the
// memory store, following the Elm architecture.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/parchment-labs/recall/internal/adapters/driving/tui/styles"
	"github.com/parchment-labs/recall/internal/core/domain"
	"github.com/parchment-labs/recall/internal/core/ports/driving"
)

// ErrMissingMemoryService is returned when the memory service is not provided.
var ErrMissingMemoryService = errors.New("tui: memory service is required")

// searchCompleted carries the outcome of an asynchronous search.
type searchCompleted struct {
	results []domain.SearchResult
	err     error
}

// App is the terminal search application. It implements tea.Model.
type App struct {
	memory driving.MemoryService
	ctx    context.Context
	styles *styles.Styles

	input     textinput.Model
	results   []domain.SearchResult
	selected  int
	searching bool
	err       error

	// focusInput is true while typing, false while navigating results.
	focusInput bool

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application over the memory service.
func NewApp(memory driving.MemoryService) (*App, error) {
	if memory == nil {
		return nil, ErrMissingMemoryService
	}

	s := styles.DefaultStyles()

	input := textinput.New()
	input.Placeholder = "What do you remember about..."
	input.Prompt = "> "
	input.CharLimit = 512
	input.Focus()

	return &App{
		memory:     memory,
		ctx:        context.Background(),
		styles:     s,
		input:      input,
		focusInput: true,
		width:      80,
		height:     24,
	}, nil
}

// WithContext sets the context used for searches.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init initialises the application.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4
		a.ready = true
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case searchCompleted:
		a.searching = false
		if msg.err != nil {
			a.err = msg.err
			return a, nil
		}
		a.err = nil
		a.results = msg.results
		a.selected = 0
		a.focusInput = false
		a.input.Blur()
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// handleKey processes keyboard input.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return a, tea.Quit

	case tea.KeyEnter:
		if a.focusInput {
			query := a.input.Value()
			if query == "" {
				return a, nil
			}
			a.searching = true
			return a, a.performSearch(query)
		}
		return a, nil
	}

	if a.focusInput {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}

	// Results mode navigation.
	switch msg.String() {
	case "up", "k":
		if a.selected > 0 {
			a.selected--
		}
	case "down", "j":
		if a.selected < len(a.results)-1 {
			a.selected++
		}
	case "n", "/":
		a.focusInput = true
		a.input.Focus()
		a.input.SetValue("")
	}
	return a, nil
}

// performSearch runs the search off the update loop.
func (a *App) performSearch(query string) tea.Cmd {
	return func() tea.Msg {
		results, err := a.memory.Search(a.ctx, domain.Query{Text: query, TopK: 10})
		return searchCompleted{results: results, err: err}
	}
}

// View renders the application.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 8)
	sections = append(sections, a.styles.Title.Render("recall"), "")
	sections = append(sections, a.styles.InputField.Render(a.input.View()), "")

	if a.err != nil {
		sections = append(sections, a.styles.Error.Render("Error: "+a.err.Error()), "")
	}

	sections = append(sections, a.renderResults())
	sections = append(sections, "", a.styles.StatusBar.Render(a.statusLine()))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderResults renders the ranked result list.
func (a *App) renderResults() string {
	if a.searching {
		return a.styles.Muted.Render("Searching...")
	}
	if len(a.results) == 0 {
		return a.styles.Muted.Render("No results yet. Type a query and press enter.")
	}

	lines := make([]string, 0, len(a.results)*3)
	for i, r := range a.results {
		title := r.Title
		if title == "" {
			title = r.URL
		}
		head := fmt.Sprintf("%d. %s", i+1, title)
		meta := fmt.Sprintf("   %s  score %.3f  %s",
			r.URL, r.Score, r.Timestamp.Format("2006-01-02"))

		if i == a.selected && !a.focusInput {
			lines = append(lines, a.styles.Selected.Render(head))
		} else {
			lines = append(lines, a.styles.Normal.Render(head))
		}
		lines = append(lines, a.styles.Muted.Render(meta))

		if i == a.selected && !a.focusInput && r.Snippet != "" {
			lines = append(lines, a.styles.Normal.Render("   "+truncate(r.Snippet, a.width-6)))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// statusLine renders the bottom help line.
func (a *App) statusLine() string {
	if a.focusInput {
		return "enter: search | esc: quit"
	}
	return fmt.Sprintf("%d results | j/k: navigate | n: new search | esc: quit", len(a.results))
}

// Run starts the TUI event loop and blocks until exit.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Results returns the current result set.
func (a *App) Results() []domain.SearchResult {
	return a.results
}

// Selected returns the index of the highlighted result.
func (a *App) Selected() int {
	return a.selected
}

// InputFocused reports whether the query input has focus.
func (a *App) InputFocused() bool {
	return a.focusInput
}

// Err returns the last search error, if any.
func (a *App) Err() error {
	return a.err
}

func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
