package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/gridrank/internal/model"
	"github.com/rendis/gridrank/internal/tui/styles"
)

// cellWidth fits "20+" plus padding.
const cellWidth = 5

// MapView renders a scan result as a grid of rank badges laid out like the
// sampled area: row 0 is the north edge, column 0 the west edge.
type MapView struct {
	spec     model.GridSpec
	points   map[int]model.RankingPoint
	selected int
	focused  bool
}

func NewMapView(result model.ScanResult) MapView {
	points := make(map[int]model.RankingPoint, len(result.RankingPoints))
	for _, p := range result.RankingPoints {
		points[p.ID] = p
	}
	m := MapView{spec: result.GridSpec, points: points}
	m.selected = m.center()
	return m
}

func (m MapView) center() int {
	if !m.spec.Valid() {
		return 0
	}
	return (m.spec.Rows/2)*m.spec.Columns + m.spec.Columns/2
}

func (m *MapView) SetFocused(f bool) {
	m.focused = f
}

// Selected returns the selected grid index.
func (m MapView) Selected() int {
	return m.selected
}

// SelectedPoint returns the ranking point under the cursor, if it was scored.
func (m MapView) SelectedPoint() (model.RankingPoint, bool) {
	p, ok := m.points[m.selected]
	return p, ok
}

// Move shifts the cursor by (dRow, dCol), clamped to the grid.
func (m *MapView) Move(dRow, dCol int) {
	if !m.spec.Valid() {
		return
	}
	row := m.selected/m.spec.Columns + dRow
	col := m.selected%m.spec.Columns + dCol
	row = clamp(row, 0, m.spec.Rows-1)
	col = clamp(col, 0, m.spec.Columns-1)
	m.selected = row*m.spec.Columns + col
}

// CellLabel is the text shown for one grid cell: the display rank, "X" when the
// target was not found and "-" for a skipped point.
func CellLabel(p model.RankingPoint, ok bool) string {
	if !ok {
		return "-"
	}
	if !p.TargetFound {
		return "X"
	}
	return model.DisplayRank(p.TargetRank, model.DisplayRankCutoff)
}

func (m MapView) View() string {
	if !m.spec.Valid() {
		return ""
	}

	var sb strings.Builder
	for row := 0; row < m.spec.Rows; row++ {
		cells := make([]string, 0, m.spec.Columns)
		for col := 0; col < m.spec.Columns; col++ {
			idx := row*m.spec.Columns + col
			p, ok := m.points[idx]

			bg := styles.RankSkipped
			if ok {
				bg = styles.RankColor(p.TargetRank, p.TargetFound)
			}
			style := lipgloss.NewStyle().
				Width(cellWidth).
				Align(lipgloss.Center).
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(bg)
			if idx == m.selected {
				style = style.Bold(true).Underline(true)
				if m.focused {
					style = style.Background(styles.Primary)
				}
			}
			cells = append(cells, style.Render(CellLabel(p, ok)))
		}
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		if row < m.spec.Rows-1 {
			sb.WriteRune('\n')
		}
	}
	return sb.String()
}

// Legend explains the cell colors.
func Legend() string {
	swatch := func(c lipgloss.Color, label string) string {
		return lipgloss.NewStyle().Background(c).Render("  ") + " " +
			lipgloss.NewStyle().Foreground(styles.Muted).Render(label)
	}
	return strings.Join([]string{
		swatch(styles.RankTop3, "1-3"),
		swatch(styles.RankTop10, "4-10"),
		swatch(styles.RankTop20, "11-20"),
		swatch(styles.RankBeyond, "20+/X"),
		swatch(styles.RankSkipped, "skipped"),
	}, "  ")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
