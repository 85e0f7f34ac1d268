package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/rendis/gridrank/internal/app"
	"github.com/rendis/gridrank/internal/engine/geo"
	"github.com/rendis/gridrank/internal/engine/scan"
	"github.com/rendis/gridrank/internal/model"
	"github.com/rendis/gridrank/internal/tui/styles"
)

type progressTickMsg struct{}

type scanCompleteMsg struct {
	Entry   model.HistoryEntry
	SaveErr error
	Err     error
}

// sharedState is mutated by the scan goroutine and read by View, so it lives
// behind a pointer that survives bubbletea value copies.
type sharedState struct {
	mu     sync.Mutex
	phase  string
	cancel context.CancelFunc
}

func (s *sharedState) setPhase(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

func (s *sharedState) getPhase() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *sharedState) getCancel() context.CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel
}

type ProgressModel struct {
	deps        *app.Deps
	msg         StartScanMsg
	spec        model.GridSpec
	progress    progress.Model
	stats       *scan.Stats
	shared      *sharedState
	startTime   time.Time
	done        bool
	err         error
	saveErr     error
	entry       model.HistoryEntry
	confirmQuit bool
	width       int
	height      int
}

func NewProgressModel(deps *app.Deps, msg StartScanMsg) ProgressModel {
	spec, _ := geo.ParseGridSpec(msg.Settings.GridSpecText)
	p := progress.New(progress.WithDefaultGradient(), progress.WithWidth(50))
	return ProgressModel{
		deps:      deps,
		msg:       msg,
		spec:      spec,
		progress:  p,
		stats:     &scan.Stats{},
		shared:    &sharedState{phase: "starting"},
		startTime: time.Now(),
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}

func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.startScan())
}

func (m ProgressModel) startScan() tea.Cmd {
	deps, msg, spec, stats, shared := m.deps, m.msg, m.spec, m.stats, m.shared
	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		shared.mu.Lock()
		shared.cancel = cancel
		shared.mu.Unlock()

		log := zap.L().With(zap.String("component", "tui"))
		settings := msg.Settings

		if msg.NeedsGeocode {
			shared.setPhase("geocoding address")
			loc, err := deps.Geocoder.Geocode(ctx, settings.Target.Address)
			if err != nil {
				return scanCompleteMsg{Err: err}
			}
			settings.Target.Location = loc
		}

		svc, err := deps.NewService(app.ScanOptions{
			Discovery: msg.Values.Discovery,
			SpanKm:    spec.SpanKm,
			Stats:     stats,
		})
		if err != nil {
			return scanCompleteMsg{Err: err}
		}

		shared.setPhase("discovering competitors")
		sink := scan.ProgressFunc(func(current, total int) {
			if current == 1 {
				shared.setPhase("ranking grid points")
			}
		})
		out, err := svc.Scan(ctx, settings, sink)
		if err != nil {
			log.Error("scan failed", zap.String("target", settings.Target.ID), zap.Error(err))
			return scanCompleteMsg{Err: err}
		}

		return scanCompleteMsg{
			Entry: model.HistoryEntry{
				ID:        out.HistoryID,
				Timestamp: time.Now().UTC(),
				Settings:  settings,
				Result:    *out.Result,
			},
			SaveErr: out.SaveErr,
		}
	}
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if cancel := m.shared.getCancel(); cancel != nil {
				cancel()
			}
			return m, tea.Quit
		case "esc":
			if m.done {
				return m, m.leave()
			}
			if m.confirmQuit {
				if cancel := m.shared.getCancel(); cancel != nil {
					cancel()
				}
				return m, func() tea.Msg { return NavigateToHome{} }
			}
			m.confirmQuit = true
			return m, nil
		case "enter":
			if m.done {
				return m, m.leave()
			}
			if m.confirmQuit {
				m.confirmQuit = false
				return m, nil
			}
		}
		if m.confirmQuit {
			m.confirmQuit = false
		}
	case progressTickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()
	case scanCompleteMsg:
		m.done = true
		m.err = msg.Err
		m.saveErr = msg.SaveErr
		m.entry = msg.Entry
		return m, nil
	}

	var cmd tea.Cmd
	var pModel tea.Model
	pModel, cmd = m.progress.Update(msg)
	m.progress = pModel.(progress.Model)
	return m, cmd
}

func (m ProgressModel) leave() tea.Cmd {
	if m.err != nil {
		return func() tea.Msg { return NavigateToSearch{} }
	}
	entry := m.entry
	return func() tea.Msg { return NavigateToResult{Entry: entry} }
}

func (m ProgressModel) View() string {
	var b strings.Builder

	s := m.msg.Settings
	b.WriteString(styles.Title.Render(fmt.Sprintf("Scanning %q for %q", s.Target.Name, s.SearchQuery)))
	b.WriteString("\n\n")

	statsBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Muted).
		Padding(0, 1).
		Width(36).
		Render(m.renderStats())
	b.WriteString(statsBox)
	b.WriteString("\n\n")

	var pct float64
	if total := m.stats.Total.Load(); total > 0 {
		pct = float64(m.stats.Done.Load()) / float64(total)
	}
	b.WriteString(m.progress.ViewAs(pct))
	b.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		if errors.Is(m.err, scan.ErrCanceled) {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Warning).Render("Scan canceled"))
		} else {
			b.WriteString(styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err)))
		}
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("enter back to form • esc back"))
	case m.done:
		r := m.entry.Result
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Success).Bold(true).
			Render(fmt.Sprintf("Complete! %d/%d points, average rank %.2f",
				len(r.RankingPoints), r.TotalPoints, r.Summary.AverageRank)))
		if m.saveErr != nil {
			b.WriteString("\n")
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Warning).
				Render(fmt.Sprintf("Not saved to history: %v", m.saveErr)))
		}
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("enter view results • esc view results"))
	case m.confirmQuit:
		b.WriteString(styles.ErrorText.Render("Press ESC again to stop the scan and go back"))
		b.WriteString("\n")
		b.WriteString(styles.StatusBar.Render("esc confirm stop • any key continue"))
	default:
		b.WriteString(styles.StatusBar.Render("esc cancel • ctrl+c quit"))
	}

	return b.String()
}

func (m ProgressModel) renderStats() string {
	var sb strings.Builder
	elapsed := time.Since(m.startTime).Truncate(time.Second)

	done := m.stats.Done.Load()
	total := m.stats.Total.Load()
	if total == 0 {
		total = int64(m.spec.Size())
	}
	failed := m.stats.Failed.Load()

	statLabel := lipgloss.NewStyle().Foreground(styles.Muted).Width(12)
	statVal := lipgloss.NewStyle().Foreground(styles.Text).Bold(true)

	row := func(label string, value string) {
		sb.WriteString(statLabel.Render(label))
		sb.WriteString(statVal.Render(value))
		sb.WriteString("\n")
	}

	if !m.done {
		row("Phase:", m.shared.getPhase())
	}
	row("Grid:", m.spec.String())
	row("Points:", fmt.Sprintf("%d/%d", done, total))

	failStyle := statVal
	if failed > 0 {
		failStyle = lipgloss.NewStyle().Foreground(styles.Error).Bold(true)
	}
	sb.WriteString(statLabel.Render("Skipped:"))
	sb.WriteString(failStyle.Render(fmt.Sprintf("%d", failed)))
	sb.WriteString("\n")

	row("Elapsed:", elapsed.String())

	return sb.String()
}

// NavigateToResult signals transition to the result view.
type NavigateToResult struct {
	Entry model.HistoryEntry
}
