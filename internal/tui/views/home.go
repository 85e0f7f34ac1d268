package views

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/gridrank/internal/model"
	"github.com/rendis/gridrank/internal/tui/styles"
)

// Overview is the part of the history store the home screen reads.
type Overview interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, limit int) ([]model.HistoryEntry, error)
}

type overviewMsg struct {
	Count  int
	Latest *model.HistoryEntry
	Err    error
}

type menuAction int

const (
	actionNewScan menuAction = iota
	actionHistory
	actionLatest
	actionQuit
)

type menuItem struct {
	key    string
	label  string
	desc   string
	action menuAction
}

type HomeModel struct {
	source  Overview
	version string
	items   []menuItem
	cursor  int
	count   int
	latest  *model.HistoryEntry
	err     error
}

func NewHomeModel(source Overview, version string) HomeModel {
	return HomeModel{
		source:  source,
		version: version,
		items: []menuItem{
			{key: "n", label: "New Scan", desc: "Rank a business across a grid", action: actionNewScan},
			{key: "l", label: "Latest Result", desc: "Reopen the most recent scan", action: actionLatest},
			{key: "h", label: "History", desc: "Browse stored scans", action: actionHistory},
			{key: "q", label: "Quit", desc: "Exit gridrank", action: actionQuit},
		},
	}
}

func (m HomeModel) Init() tea.Cmd {
	if m.source == nil {
		return nil
	}
	src := m.source
	return func() tea.Msg {
		ctx := context.Background()
		n, err := src.Count(ctx)
		if err != nil {
			return overviewMsg{Err: err}
		}
		latest, err := src.List(ctx, 1)
		if err != nil {
			return overviewMsg{Count: n, Err: err}
		}
		msg := overviewMsg{Count: n}
		if len(latest) > 0 {
			msg.Latest = &latest[0]
		}
		return msg
	}
}

func (m HomeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case overviewMsg:
		m.count = msg.Count
		m.latest = msg.Latest
		m.err = msg.Err
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "enter":
			return m, m.run(m.items[m.cursor].action)
		case "q":
			return m, tea.Quit
		default:
			for i, it := range m.items {
				if it.key == msg.String() {
					m.cursor = i
					return m, m.run(it.action)
				}
			}
		}
	}
	return m, nil
}

func (m HomeModel) run(a menuAction) tea.Cmd {
	switch a {
	case actionNewScan:
		return func() tea.Msg { return NavigateToSearch{} }
	case actionHistory:
		return func() tea.Msg { return NavigateToHistory{} }
	case actionLatest:
		if m.latest == nil {
			return nil
		}
		entry := *m.latest
		return func() tea.Msg { return NavigateToResult{Entry: entry} }
	case actionQuit:
		return tea.Quit
	}
	return nil
}

func (m HomeModel) View() string {
	var b strings.Builder

	logo := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true).Render("  gridrank")
	version := lipgloss.NewStyle().Foreground(styles.Muted).Render(" " + m.version)
	tagline := lipgloss.NewStyle().Foreground(styles.Secondary).Italic(true).Render("  Local search rank grid")

	b.WriteString(logo + version + "\n")
	b.WriteString(tagline + "\n\n")

	keyStyle := lipgloss.NewStyle().Foreground(styles.Secondary).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(styles.Muted)

	for i, item := range m.items {
		cursor := "  "
		style := styles.InactiveItem
		if i == m.cursor {
			cursor = "> "
			style = styles.ActiveItem
		}
		if item.action == actionLatest && m.latest == nil {
			style = descStyle
		}
		fmt.Fprintf(&b, "%s%s %s%s\n", cursor, keyStyle.Render("["+item.key+"]"),
			style.Render(item.label), descStyle.Render(" - "+item.desc))
	}

	b.WriteString("\n")
	b.WriteString(m.overviewView())
	b.WriteString("\n\n")
	b.WriteString(styles.StatusBar.Render("↑↓ navigate • enter select • q quit"))

	return styles.Border.Render(b.String())
}

func (m HomeModel) overviewView() string {
	muted := lipgloss.NewStyle().Foreground(styles.Muted)
	switch {
	case m.err != nil:
		return styles.ErrorText.Render("  History unavailable: " + m.err.Error())
	case m.latest == nil:
		return muted.Render("  No scans stored yet")
	}
	e := m.latest
	return muted.Render(fmt.Sprintf("  %d stored · latest %q for %q, avg rank %.1f, %s",
		m.count, e.Settings.Target.Name, e.Settings.SearchQuery,
		e.Result.Summary.AverageRank, timeAgo(e.Timestamp)))
}

// Navigation messages
type NavigateToSearch struct{}
