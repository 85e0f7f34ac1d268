package insight

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rendis/gridrank/internal/engine/llm"
	"github.com/rendis/gridrank/internal/engine/llm/llmtest"
	"github.com/rendis/gridrank/internal/model"
)

func sampleScan() (model.ScanSettings, model.ScanResult) {
	target := model.Business{ID: "t", Name: "Cafe Sol", Address: "Gran Via 1"}
	rival := model.Business{ID: "r", Name: "Cafe Luna"}
	settings := model.ScanSettings{Target: target, SearchQuery: "coffee", GridSpecText: "2 x 2 (1 km)"}
	result := model.ScanResult{
		TargetID: "t",
		GridSpec: model.GridSpec{Columns: 2, Rows: 2, SpanKm: 1},
		Summary:  model.ScanSummary{AverageRank: 9.33, Top3Percentage: 33.3, Top10Percentage: 66.7},
		RankingPoints: []model.RankingPoint{
			{ID: 0, Row: 0, Col: 0, TargetRank: 1, TargetFound: true},
			{ID: 1, Row: 0, Col: 1, TargetRank: 25, TargetFound: true},
			{ID: 3, Row: 1, Col: 1, TargetRank: 3, TargetFound: false},
		},
		CompetitorStandings: []model.CompetitorStanding{
			{Business: rival, AverageRank: 1.5},
			{Business: target, AverageRank: 9.33},
		},
		AttributionSources: []model.Source{{URI: "https://maps.example", Title: "maps"}},
		TotalPoints:        4,
		SkippedPoints:      1,
	}
	return settings, result
}

func TestPrompt(t *testing.T) {
	settings, result := sampleScan()
	p := Prompt(settings, result, 10)

	assert.Contains(t, p, "Business: Cafe Sol (Gran Via 1)")
	assert.Contains(t, p, "Grid: 2 x 2 (1 km)")
	assert.Contains(t, p, "Points scored: 3/4")
	assert.Contains(t, p, "1 20+\n- X\n")
	assert.Contains(t, p, "1. Cafe Luna: 1.50")
	assert.Contains(t, p, "2. Cafe Sol (this business): 9.33")

	assert.NotContains(t, Prompt(settings, result, 1), "Cafe Sol (this business)")
}

func TestLLMGenerator_Generate(t *testing.T) {
	settings, result := sampleScan()

	client := &llmtest.MockClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req llm.MessageRequest) bool {
		return req.Model == "claude-test" && req.Temperature != nil && len(req.Messages) == 1
	})).Return(llmtest.TextResponse(`{
		"summary": "  Dominant downtown, invisible to the east.  ",
		"strengths": ["center"],
		"weaknesses": ["east side"],
		"recommendations": ["collect reviews", "add east-side landing page"]
	}`), nil)

	got, err := NewLLMGenerator(client, Options{Model: "claude-test"}).Generate(context.Background(), settings, result)
	require.NoError(t, err)
	client.AssertExpectations(t)

	assert.Equal(t, "Dominant downtown, invisible to the east.", got.Summary)
	assert.Equal(t, []string{"center"}, got.Strengths)
	assert.Len(t, got.Recommendations, 2)
	assert.Equal(t, result.AttributionSources, got.Sources)
	assert.Equal(t, "claude-test", got.Model)
}

func TestLLMGenerator_RejectsBadReplies(t *testing.T) {
	settings, result := sampleScan()

	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{"missing summary", `{"summary": "", "strengths": []}`, nil},
		{"too many items", `{"summary": "ok", "strengths": ["1","2","3","4","5","6","7"]}`, nil},
		{"blank item", `{"summary": "ok", "weaknesses": [""]}`, nil},
		{"prose", `Here is what I think about the scan.`, nil},
		{"api error", "", errors.New("overloaded")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &llmtest.MockClient{}
			if tt.err != nil {
				client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, tt.err)
			} else {
				client.On("CreateMessage", mock.Anything, mock.Anything).Return(llmtest.TextResponse(tt.reply), nil)
			}
			_, err := NewLLMGenerator(client, Options{Model: "claude-test"}).Generate(context.Background(), settings, result)
			assert.Error(t, err)
		})
	}
}

func TestLLMGenerator_RejectsTruncatedReply(t *testing.T) {
	settings, result := sampleScan()
	client := &llmtest.MockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(
		llmtest.TruncatedResponse(`{"summary": "Strong downtown presence", "strengths": ["close to the`), nil)

	in, err := NewLLMGenerator(client, Options{Model: "claude-test"}).Generate(context.Background(), settings, result)
	assert.ErrorIs(t, err, llm.ErrTruncated)
	assert.Nil(t, in)
}

func TestLLMGenerator_EmptyScan(t *testing.T) {
	settings, _ := sampleScan()
	_, err := NewLLMGenerator(&llmtest.MockClient{}, Options{}).Generate(context.Background(), settings, model.ScanResult{})
	assert.Error(t, err)
}
