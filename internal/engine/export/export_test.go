package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rendis/gridrank/internal/model"
)

func sampleEntry() model.HistoryEntry {
	target := model.Business{ID: "t", Name: "Cafe Sol", Address: "Gran Via 1", Rating: 4.6, ReviewCount: 88}
	rival := model.Business{ID: "r", Name: "Cafe, Luna"}
	return model.HistoryEntry{
		ID:        "scan-1",
		Timestamp: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
		Settings:  model.ScanSettings{Target: target, SearchQuery: "coffee", GridSpecText: "2 x 1 (1 km)"},
		Result: model.ScanResult{
			TargetID: "t",
			GridSpec: model.GridSpec{Columns: 2, Rows: 1, SpanKm: 1},
			RankingPoints: []model.RankingPoint{
				{ID: 0, Col: 0, TargetRank: 1, TargetFound: true, Coordinate: model.Coordinate{Lat: 40.1, Lng: -3.1},
					RankedEntries: []model.RankedEntry{{Rank: 1, Business: target}, {Rank: 2, Business: rival}}},
				{ID: 1, Col: 1, TargetRank: 22, TargetFound: true, Coordinate: model.Coordinate{Lat: 40.1, Lng: -3.09},
					RankedEntries: []model.RankedEntry{{Rank: 1, Business: rival}}},
			},
			CompetitorStandings: []model.CompetitorStanding{
				{Business: rival, AverageRank: 1.5},
				{Business: target, AverageRank: 11.5},
			},
			TotalPoints: 2,
		},
	}
}

func readCSV(t *testing.T, b []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteCSV_Points(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleEntry(), TablePoints))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 3)
	assert.Equal(t, "target_rank", rows[0][5])
	assert.Equal(t, []string{"0", "0", "0", "40.100000", "-3.100000", "1", "true", "1", "Cafe Sol"}, rows[1])
	assert.Equal(t, "22", rows[2][5])
	assert.Equal(t, "20+", rows[2][7])
	assert.Equal(t, "Cafe, Luna", rows[2][8])
}

func TestWriteCSV_Competitors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleEntry(), TableCompetitors))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1", "r", "Cafe, Luna", "", "1.50", "false", "0.0", "0"}, rows[1])
	assert.Equal(t, "true", rows[2][5])

	assert.Error(t, WriteCSV(&buf, sampleEntry(), Table("pixels")))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleEntry(), FormatJSON, ""))

	var got model.HistoryEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sampleEntry().Result, got.Result)
	assert.Equal(t, "scan-1", got.ID)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleEntry(), FormatYAML, ""))
	assert.Contains(t, buf.String(), "grid_spec_text: 2 x 1 (1 km)")

	var got model.HistoryEntry
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "scan-1", got.ID)
	assert.Equal(t, sampleEntry().Result.CompetitorStandings, got.Result.CompetitorStandings)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatCSV, "CSV": FormatCSV, "json": FormatJSON, "yml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xlsx")
	assert.Error(t, err)
}
