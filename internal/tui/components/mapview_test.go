package components

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rendis/gridrank/internal/model"
)

func result3x3() model.ScanResult {
	var points []model.RankingPoint
	for i := 0; i < 9; i++ {
		if i == 8 {
			continue // skipped
		}
		points = append(points, model.RankingPoint{
			ID: i, Row: i / 3, Col: i % 3,
			TargetRank: i + 1, TargetFound: i != 7,
		})
	}
	points[2].TargetRank = 25
	return model.ScanResult{
		GridSpec:      model.GridSpec{Columns: 3, Rows: 3, SpanKm: 1},
		RankingPoints: points,
		TotalPoints:   9,
		SkippedPoints: 1,
	}
}

func TestCellLabel(t *testing.T) {
	assert.Equal(t, "4", CellLabel(model.RankingPoint{TargetRank: 4, TargetFound: true}, true))
	assert.Equal(t, "20+", CellLabel(model.RankingPoint{TargetRank: 21, TargetFound: true}, true))
	assert.Equal(t, "20", CellLabel(model.RankingPoint{TargetRank: 20, TargetFound: true}, true))
	assert.Equal(t, "X", CellLabel(model.RankingPoint{TargetRank: 6}, true))
	assert.Equal(t, "-", CellLabel(model.RankingPoint{}, false))
}

func TestMapView_StartsAtCenterAndClamps(t *testing.T) {
	m := NewMapView(result3x3())
	assert.Equal(t, 4, m.Selected())

	m.Move(-5, -5)
	assert.Equal(t, 0, m.Selected())

	m.Move(1, 2)
	assert.Equal(t, 5, m.Selected())

	m.Move(10, 0)
	assert.Equal(t, 8, m.Selected())
	_, ok := m.SelectedPoint()
	assert.False(t, ok)
}

func TestMapView_View(t *testing.T) {
	out := NewMapView(result3x3()).View()
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, out, "20+")
	assert.Contains(t, out, "X")
	assert.Contains(t, out, "-")

	assert.Empty(t, NewMapView(model.ScanResult{}).View())
}
