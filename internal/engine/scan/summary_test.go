package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/gridrank/internal/model"
)

func pointsWithRanks(ranks ...int) []model.RankingPoint {
	out := make([]model.RankingPoint, len(ranks))
	for i, r := range ranks {
		out[i] = model.RankingPoint{ID: i, TargetRank: r, TargetFound: true}
	}
	return out
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name  string
		ranks []int
		want  model.ScanSummary
	}{
		{"mixed", []int{1, 2, 5, 21}, model.ScanSummary{AverageRank: 7.25, Top3Percentage: 50, Top10Percentage: 75}},
		{"all first", []int{1, 1, 1}, model.ScanSummary{AverageRank: 1, Top3Percentage: 100, Top10Percentage: 100}},
		{"boundaries", []int{3, 4, 10, 11}, model.ScanSummary{AverageRank: 7, Top3Percentage: 25, Top10Percentage: 75}},
		{"empty", nil, model.ScanSummary{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(pointsWithRanks(tt.ranks...))
			assert.InDelta(t, tt.want.AverageRank, got.AverageRank, 1e-9)
			assert.InDelta(t, tt.want.Top3Percentage, got.Top3Percentage, 1e-9)
			assert.InDelta(t, tt.want.Top10Percentage, got.Top10Percentage, 1e-9)
		})
	}
}

func TestSummarize_BoundedByRankRange(t *testing.T) {
	got := Summarize(pointsWithRanks(2, 9, 4, 6))
	assert.GreaterOrEqual(t, got.AverageRank, 2.0)
	assert.LessOrEqual(t, got.AverageRank, 9.0)
	assert.LessOrEqual(t, got.Top3Percentage, got.Top10Percentage)
}

func entries(ids ...string) []model.RankedEntry {
	out := make([]model.RankedEntry, len(ids))
	for i, id := range ids {
		out[i] = model.RankedEntry{Rank: i + 1, Business: model.Business{ID: id, Name: id}}
	}
	return out
}

func TestStandings(t *testing.T) {
	points := []model.RankingPoint{
		{ID: 0, RankedEntries: entries("A", "B", "C")},
		{ID: 1, RankedEntries: entries("A", "C", "B")},
		{ID: 2, RankedEntries: entries("A", "B", "C")},
	}

	got := Standings(points)
	require.Len(t, got, 3)

	assert.Equal(t, "A", got[0].Business.ID)
	assert.InDelta(t, 1.0, got[0].AverageRank, 1e-9)
	assert.Equal(t, "B", got[1].Business.ID)
	assert.InDelta(t, 7.0/3, got[1].AverageRank, 1e-9)
	assert.Equal(t, "C", got[2].Business.ID)
	assert.InDelta(t, 8.0/3, got[2].AverageRank, 1e-9)
}

func TestStandings_TiesKeepFirstSeenOrder(t *testing.T) {
	points := []model.RankingPoint{
		{ID: 0, RankedEntries: entries("X", "Y")},
		{ID: 1, RankedEntries: entries("Y", "X")},
	}

	got := Standings(points)
	require.Len(t, got, 2)
	assert.Equal(t, "X", got[0].Business.ID)
	assert.Equal(t, "Y", got[1].Business.ID)
	assert.Equal(t, got[0].AverageRank, got[1].AverageRank)
}

func TestStandings_PartialAppearance(t *testing.T) {
	// Z only appears at one point and averages over that point alone
	points := []model.RankingPoint{
		{ID: 0, RankedEntries: entries("X", "Y")},
		{ID: 1, RankedEntries: entries("Z", "X", "Y")},
	}

	got := Standings(points)
	require.Len(t, got, 3)
	assert.Equal(t, "Z", got[0].Business.ID)
	assert.InDelta(t, 1.0, got[0].AverageRank, 1e-9)
	assert.Equal(t, "X", got[1].Business.ID)
	assert.InDelta(t, 1.5, got[1].AverageRank, 1e-9)
}

func TestStandings_Sorted(t *testing.T) {
	points := []model.RankingPoint{
		{ID: 0, RankedEntries: entries("d", "c", "b", "a")},
		{ID: 1, RankedEntries: entries("c", "d", "a", "b")},
	}
	got := Standings(points)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].AverageRank, got[i].AverageRank)
	}
	assert.Empty(t, Standings(nil))
}
