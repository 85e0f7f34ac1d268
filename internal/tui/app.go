// Package tui is the interactive bubbletea front end.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/rendis/gridrank/internal/app"
	"github.com/rendis/gridrank/internal/tui/views"
)

type viewID int

const (
	viewHome viewID = iota
	viewSearch
	viewProgress
	viewExplorer
	viewHistory
)

// App is the root bubbletea model.
type App struct {
	deps        *app.Deps
	version     string
	statePath   string
	currentView viewID
	width       int
	height      int
	home        views.HomeModel
	search      views.SearchModel
	progress    views.ProgressModel
	explorer    views.ExplorerModel
	history     views.HistoryModel
}

func NewApp(deps *app.Deps, version string) App {
	return App{
		deps:        deps,
		version:     version,
		statePath:   lastScanPath(),
		currentView: viewHome,
		home:        views.NewHomeModel(deps.Store, version),
	}
}

func (a App) Init() tea.Cmd {
	return a.home.Init()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && a.currentView != viewProgress {
			return a, tea.Quit
		}
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case views.NavigateToSearch:
		a.currentView = viewSearch
		sc := a.deps.Cfg.Scan
		a.search = views.NewSearchModel(LoadLastScan(a.statePath), sc.GridSpec, sc.Discovery)
		return a, a.search.Init()
	case views.NavigateToHome:
		a.currentView = viewHome
		a.home = views.NewHomeModel(a.deps.Store, a.version)
		return a, a.home.Init()
	case views.StartScanMsg:
		if err := SaveLastScan(a.statePath, msg.Values); err != nil {
			zap.L().Warn("failed to save last scan settings", zap.Error(err))
		}
		a.currentView = viewProgress
		a.progress = views.NewProgressModel(a.deps, msg)
		return a, tea.Batch(a.progress.Init(), a.sizeCmd())
	case views.NavigateToResult:
		a.currentView = viewExplorer
		a.explorer = views.NewExplorerModel(a.deps, msg.Entry)
		return a, tea.Batch(a.explorer.Init(), a.sizeCmd())
	case views.NavigateToHistory:
		a.currentView = viewHistory
		a.history = views.NewHistoryModel(a.deps)
		return a, a.history.Init()
	}

	var cmd tea.Cmd
	switch a.currentView {
	case viewHome:
		var m tea.Model
		m, cmd = a.home.Update(msg)
		a.home = m.(views.HomeModel)
	case viewSearch:
		var m tea.Model
		m, cmd = a.search.Update(msg)
		a.search = m.(views.SearchModel)
	case viewProgress:
		var m tea.Model
		m, cmd = a.progress.Update(msg)
		a.progress = m.(views.ProgressModel)
	case viewExplorer:
		var m tea.Model
		m, cmd = a.explorer.Update(msg)
		a.explorer = m.(views.ExplorerModel)
	case viewHistory:
		var m tea.Model
		m, cmd = a.history.Update(msg)
		a.history = m.(views.HistoryModel)
	}

	return a, cmd
}

func (a App) View() string {
	var content string
	switch a.currentView {
	case viewHome:
		content = a.home.View()
	case viewSearch:
		content = a.search.View()
	case viewProgress:
		content = a.progress.View()
	case viewExplorer:
		content = a.explorer.View()
	case viewHistory:
		content = a.history.View()
	}

	return lipgloss.Place(
		a.width, a.height,
		lipgloss.Center, lipgloss.Top,
		content,
	)
}

// sizeCmd sends a WindowSizeMsg so newly created views get the current terminal size.
func (a App) sizeCmd() tea.Cmd {
	w, h := a.width, a.height
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: w, Height: h}
	}
}

// Run starts the TUI.
func Run(deps *app.Deps, version string) error {
	p := tea.NewProgram(NewApp(deps, version), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
