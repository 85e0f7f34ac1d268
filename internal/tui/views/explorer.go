package views

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/gridrank/internal/app"
	"github.com/rendis/gridrank/internal/engine/export"
	"github.com/rendis/gridrank/internal/model"
	"github.com/rendis/gridrank/internal/tui/components"
	"github.com/rendis/gridrank/internal/tui/styles"
)

type focusArea int

const (
	focusMap focusArea = iota
	focusTable
)

// listSize caps the ranked list shown for the selected point.
const listSize = 10

// ExplorerModel shows one scan: the rank grid, the ranking at the selected
// point, the competitor leaderboard and, when generated, the insight.
type ExplorerModel struct {
	deps       *app.Deps
	entry      model.HistoryEntry
	grid       components.MapView
	table      table.Model
	focus      focusArea
	width      int
	height     int
	statusMsg  string
	generating bool
}

type insightMsg struct {
	Insight *model.Insight
	Err     error
}

func NewExplorerModel(deps *app.Deps, entry model.HistoryEntry) ExplorerModel {
	m := ExplorerModel{
		deps:  deps,
		entry: entry,
		grid:  components.NewMapView(entry.Result),
	}
	m.grid.SetFocused(true)
	m.buildTable()
	return m
}

func (m ExplorerModel) Init() tea.Cmd {
	return nil
}

func (m ExplorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.buildTable()
	case insightMsg:
		m.generating = false
		if msg.Err != nil {
			m.statusMsg = fmt.Sprintf("Insight error: %v", msg.Err)
			return m, nil
		}
		m.entry.Insight = msg.Insight
		m.statusMsg = "Insight generated"
		return m, nil
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "ctrl+c":
			return m, tea.Quit
		case "esc", "q":
			return m, func() tea.Msg { return NavigateToHome{} }
		case "tab":
			if m.focus == focusMap {
				m.focus = focusTable
				m.table.SetStyles(focusedTableStyles())
				m.table.Focus()
			} else {
				m.focus = focusMap
				m.table.SetStyles(unfocusedTableStyles())
				m.table.Blur()
			}
			m.grid.SetFocused(m.focus == focusMap)
			return m, nil
		case "e":
			m.exportCSV()
			return m, nil
		case "i":
			if m.generating {
				return m, nil
			}
			m.generating = true
			m.statusMsg = "Generating insight..."
			return m, m.generateInsight()
		}

		if m.focus == focusMap {
			switch key {
			case "up", "k":
				m.grid.Move(-1, 0)
			case "down", "j":
				m.grid.Move(1, 0)
			case "left", "h":
				m.grid.Move(0, -1)
			case "right", "l":
				m.grid.Move(0, 1)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.focus == focusTable {
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

func (m ExplorerModel) generateInsight() tea.Cmd {
	deps, entry := m.deps, m.entry
	return func() tea.Msg {
		gen, err := deps.Insight()
		if err != nil {
			return insightMsg{Err: err}
		}
		ctx := context.Background()
		in, err := gen.Generate(ctx, entry.Settings, entry.Result)
		if err != nil {
			return insightMsg{Err: err}
		}
		if entry.ID != "" {
			if err := deps.Store.SaveInsight(ctx, entry.ID, *in); err != nil {
				return insightMsg{Insight: in, Err: err}
			}
		}
		return insightMsg{Insight: in}
	}
}

func (m *ExplorerModel) buildTable() {
	nameW := 32
	if m.width > 100 {
		nameW += (m.width - 100) / 2
	}

	columns := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Business", Width: nameW},
		{Title: "Avg rank", Width: 9},
		{Title: "Rating", Width: 6},
	}

	standings := m.entry.Result.CompetitorStandings
	rows := make([]table.Row, len(standings))
	for i, s := range standings {
		name := s.Business.Name
		if s.Business.ID == m.entry.Result.TargetID {
			name = "★ " + name
		}
		rating := ""
		if s.Business.Rating > 0 {
			rating = fmt.Sprintf("%.1f", s.Business.Rating)
		}
		rows[i] = table.Row{
			fmt.Sprintf("%d", i+1),
			truncate(name, nameW),
			fmt.Sprintf("%.2f", s.AverageRank),
			rating,
		}
	}

	height := 8
	if m.height > 40 {
		height = m.height - 32
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(m.focus == focusTable),
		table.WithHeight(height),
	)
	if m.focus == focusTable {
		t.SetStyles(focusedTableStyles())
	} else {
		t.SetStyles(unfocusedTableStyles())
	}
	m.table = t
}

func focusedTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Secondary)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(styles.Primary).
		Bold(true)
	return s
}

func unfocusedTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Muted)
	s.Selected = s.Selected.
		Foreground(styles.Text).
		Background(lipgloss.Color("#333333")).
		Bold(false)
	return s
}

func (m ExplorerModel) View() string {
	var b strings.Builder

	s := m.entry.Settings
	b.WriteString(styles.Title.Render(fmt.Sprintf("%s · %q · %s", s.Target.Name, s.SearchQuery, m.entry.Result.GridSpec)))
	b.WriteString("\n")

	mapBorder := styles.Muted
	if m.focus == focusMap {
		mapBorder = styles.Primary
	}
	mapBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(mapBorder).
		Padding(0, 1).
		Render(m.grid.View() + "\n\n" + components.Legend())

	left := lipgloss.JoinVertical(lipgloss.Left, mapBox, m.viewSummary())
	right := m.viewPoint()
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))
	b.WriteString("\n\n")

	b.WriteString(styles.Subtitle.Render("Competitor standings"))
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	if in := m.entry.Insight; in != nil {
		b.WriteString("\n")
		b.WriteString(m.viewInsight(*in))
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Success).Render(m.statusMsg))
	}

	var statusText string
	if m.focus == focusMap {
		statusText = "←↑↓→ move • tab standings • i insight • e export csv • esc back"
	} else {
		statusText = "↑↓ navigate • tab map • i insight • e export csv • esc back"
	}
	b.WriteString("\n")
	b.WriteString(styles.StatusBar.Render(statusText))

	return b.String()
}

func (m ExplorerModel) viewSummary() string {
	r := m.entry.Result
	label := lipgloss.NewStyle().Foreground(styles.Muted).Width(12)
	val := lipgloss.NewStyle().Foreground(styles.Text).Bold(true)

	var sb strings.Builder
	row := func(l, v string) {
		sb.WriteString(label.Render(l) + val.Render(v) + "\n")
	}
	row("Points:", fmt.Sprintf("%d/%d", len(r.RankingPoints), r.TotalPoints))
	row("Avg rank:", fmt.Sprintf("%.2f", r.Summary.AverageRank))
	row("Top 3:", fmt.Sprintf("%.1f%%", r.Summary.Top3Percentage))
	row("Top 10:", fmt.Sprintf("%.1f%%", r.Summary.Top10Percentage))
	row("Sources:", fmt.Sprintf("%d", len(r.AttributionSources)))
	if !r.Complete() {
		sb.WriteString(lipgloss.NewStyle().Foreground(styles.Warning).
			Render(fmt.Sprintf("%d points skipped", r.SkippedPoints)))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Muted).
		Padding(0, 1).
		Width(30).
		Render(strings.TrimRight(sb.String(), "\n"))
}

func (m ExplorerModel) viewPoint() string {
	var sb strings.Builder

	idx := m.grid.Selected()
	p, ok := m.grid.SelectedPoint()
	cols := m.entry.Result.GridSpec.Columns
	if cols < 1 {
		cols = 1
	}
	sb.WriteString(styles.Subtitle.Render(fmt.Sprintf("Point %d (row %d, col %d)", idx, idx/cols, idx%cols)))
	sb.WriteString("\n")

	if !ok {
		sb.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).Render("This point was skipped"))
		for _, f := range m.entry.Result.Failures {
			if f.Index == idx {
				sb.WriteString("\n" + styles.ErrorText.Render(truncate(f.Error, 50)))
			}
		}
		return boxed(sb.String())
	}

	sb.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Render(p.Coordinate.String()))
	sb.WriteString("\n\n")

	target := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	other := lipgloss.NewStyle().Foreground(styles.Text)
	for i, e := range p.RankedEntries {
		if i >= listSize {
			break
		}
		line := fmt.Sprintf("%3s. %s", model.DisplayRank(e.Rank, model.DisplayRankCutoff), truncate(e.Business.Name, 36))
		if e.Business.ID == m.entry.Result.TargetID {
			sb.WriteString(target.Render(line))
		} else {
			sb.WriteString(other.Render(line))
		}
		sb.WriteString("\n")
	}
	if p.TargetRank > listSize {
		label := model.DisplayRank(p.TargetRank, model.DisplayRankCutoff)
		if !p.TargetFound {
			label = "not found"
		}
		sb.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Render("  ..."))
		sb.WriteString("\n")
		sb.WriteString(target.Render(fmt.Sprintf("%s: %s", truncate(m.entry.Settings.Target.Name, 30), label)))
	}

	return boxed(strings.TrimRight(sb.String(), "\n"))
}

func (m ExplorerModel) viewInsight(in model.Insight) string {
	var sb strings.Builder
	sb.WriteString(styles.Subtitle.Render("Insight"))
	sb.WriteString("\n")
	sb.WriteString(in.Summary)
	sb.WriteString("\n")

	list := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		sb.WriteString("\n" + lipgloss.NewStyle().Bold(true).Render(title) + "\n")
		for _, it := range items {
			sb.WriteString("  • " + it + "\n")
		}
	}
	list("Strengths", in.Strengths)
	list("Weaknesses", in.Weaknesses)
	list("Recommendations", in.Recommendations)

	width := m.width - 4
	if width < 40 {
		width = 76
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Secondary).
		Padding(0, 1).
		Width(width).
		Render(strings.TrimRight(sb.String(), "\n"))
}

func boxed(s string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Muted).
		Padding(0, 1).
		Width(46).
		Render(s)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func (m *ExplorerModel) exportCSV() {
	id := m.entry.ID
	if id == "" {
		id = "unsaved"
	} else if len(id) > 8 {
		id = id[:8]
	}
	path := fmt.Sprintf("gridrank-%s.csv", id)

	f, err := os.Create(path)
	if err != nil {
		m.statusMsg = fmt.Sprintf("Export error: %v", err)
		return
	}
	defer f.Close()

	if err := export.WriteCSV(f, m.entry, export.TablePoints); err != nil {
		m.statusMsg = fmt.Sprintf("Export error: %v", err)
		return
	}
	m.statusMsg = fmt.Sprintf("Exported %d points to %s", len(m.entry.Result.RankingPoints), path)
}
