package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/gridrank/internal/app"
	"github.com/rendis/gridrank/internal/model"
	"github.com/rendis/gridrank/internal/tui/styles"
)

const historyLimit = 50

type historyLoadedMsg struct {
	Entries []model.HistoryEntry
	Err     error
}

type historyDeletedMsg struct {
	ID  string
	Err error
}

// HistoryModel lists stored scans, newest first.
type HistoryModel struct {
	deps          *app.Deps
	entries       []model.HistoryEntry
	cursor        int
	loaded        bool
	err           error
	confirmDelete bool
}

func NewHistoryModel(deps *app.Deps) HistoryModel {
	return HistoryModel{deps: deps}
}

func (m HistoryModel) Init() tea.Cmd {
	store := m.deps.Store
	return func() tea.Msg {
		entries, err := store.List(context.Background(), historyLimit)
		return historyLoadedMsg{Entries: entries, Err: err}
	}
}

func (m HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		m.loaded = true
		m.err = msg.Err
		m.entries = msg.Entries
		if m.cursor >= len(m.entries) {
			m.cursor = max(len(m.entries)-1, 0)
		}
	case historyDeletedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		return m, m.Init()
	case tea.KeyMsg:
		key := msg.String()
		if m.confirmDelete {
			m.confirmDelete = false
			if key == "d" || key == "y" {
				return m, m.deleteSelected()
			}
			return m, nil
		}
		switch key {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.entries)-1 {
				m.cursor++
			}
		case "enter":
			if m.cursor < len(m.entries) {
				entry := m.entries[m.cursor]
				return m, func() tea.Msg { return NavigateToResult{Entry: entry} }
			}
		case "d":
			if m.cursor < len(m.entries) {
				m.confirmDelete = true
			}
		case "esc", "q":
			return m, func() tea.Msg { return NavigateToHome{} }
		}
	}
	return m, nil
}

func (m HistoryModel) deleteSelected() tea.Cmd {
	store := m.deps.Store
	id := m.entries[m.cursor].ID
	return func() tea.Msg {
		return historyDeletedMsg{ID: id, Err: store.Delete(context.Background(), id)}
	}
}

func (m HistoryModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Scan History"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}

	if !m.loaded {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).Render("Loading..."))
		return styles.Border.Render(b.String())
	}

	if len(m.entries) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("No scans yet"))
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("esc back"))
		return styles.Border.Render(b.String())
	}

	for i, e := range m.entries {
		cursor := "  "
		style := styles.InactiveItem
		if i == m.cursor {
			cursor = "> "
			style = styles.ActiveItem
		}

		title := style.Render(fmt.Sprintf("%s · %q", e.Settings.Target.Name, e.Settings.SearchQuery))
		r := e.Result
		details := lipgloss.NewStyle().Foreground(styles.Muted).Render(fmt.Sprintf(
			"  %s  avg %.2f  %d/%d points  %s",
			r.GridSpec, r.Summary.AverageRank, len(r.RankingPoints), r.TotalPoints, timeAgo(e.Timestamp)))
		if e.Insight != nil {
			details += lipgloss.NewStyle().Foreground(styles.Secondary).Render("  ✦ insight")
		}

		b.WriteString(fmt.Sprintf("%s%s\n%s\n", cursor, title, details))
	}

	b.WriteString("\n")
	if m.confirmDelete {
		b.WriteString(styles.ErrorText.Render("Press d again to delete this scan"))
	} else {
		b.WriteString(styles.StatusBar.Render("enter open • d delete • esc back"))
	}

	return styles.Border.Render(b.String())
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// NavigateToHistory signals navigation to the history view.
type NavigateToHistory struct{}
