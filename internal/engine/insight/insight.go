// Package insight produces narrative analysis of a finished scan.
package insight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rendis/gridrank/internal/engine/llm"
	"github.com/rendis/gridrank/internal/model"
)

// Generator turns a scan into an Insight.
type Generator interface {
	Generate(ctx context.Context, settings model.ScanSettings, result model.ScanResult) (*model.Insight, error)
}

const maxListItems = 6

type reply struct {
	Summary         string   `json:"summary" validate:"required"`
	Strengths       []string `json:"strengths" validate:"max=6,dive,required"`
	Weaknesses      []string `json:"weaknesses" validate:"max=6,dive,required"`
	Recommendations []string `json:"recommendations" validate:"max=6,dive,required"`
}

// Options configures an LLMGenerator.
type Options struct {
	Model     string
	MaxTokens int64
	Timeout   time.Duration
	// TopCompetitors caps the leaderboard rows sent in the prompt.
	TopCompetitors int
}

// LLMGenerator asks Claude for an analysis of the scan.
type LLMGenerator struct {
	client   llm.Client
	opts     Options
	validate *validator.Validate
}

func NewLLMGenerator(client llm.Client, opts Options) *LLMGenerator {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1500
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.TopCompetitors <= 0 {
		opts.TopCompetitors = 10
	}
	return &LLMGenerator{client: client, opts: opts, validate: validator.New()}
}

func (g *LLMGenerator) Generate(ctx context.Context, settings model.ScanSettings, result model.ScanResult) (*model.Insight, error) {
	if len(result.RankingPoints) == 0 {
		return nil, eris.New("insight: scan has no ranking points")
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	schema, err := llm.SchemaJSON(reply{})
	if err != nil {
		return nil, err
	}

	temp := 0.3
	resp, err := g.client.CreateMessage(ctx, llm.MessageRequest{
		Model:     g.opts.Model,
		MaxTokens: g.opts.MaxTokens,
		System: "You are a local SEO consultant. Reply with one JSON object matching this schema and nothing else. " +
			fmt.Sprintf("Each list holds at most %d short items.\n", maxListItems) + schema,
		Messages:    []llm.Message{{Role: "user", Content: Prompt(settings, result, g.opts.TopCompetitors)}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "insight: llm request")
	}
	resp.Usage.LogUsage(resp.Model, "insight")
	if resp.Truncated() {
		zap.L().Warn("llm reply truncated", zap.String("component", "insight"), zap.Int64("max_tokens", g.opts.MaxTokens))
		return nil, eris.Wrap(llm.ErrTruncated, "insight: parse reply")
	}

	var r reply
	if err := llm.UnmarshalFlexible(resp.Text(), &r); err != nil {
		return nil, eris.Wrap(err, "insight: parse reply")
	}
	r.Summary = strings.TrimSpace(r.Summary)
	if err := g.validate.Struct(r); err != nil {
		return nil, eris.Wrap(err, "insight: invalid reply")
	}

	return &model.Insight{
		Summary:         r.Summary,
		Strengths:       r.Strengths,
		Weaknesses:      r.Weaknesses,
		Recommendations: r.Recommendations,
		Sources:         result.AttributionSources,
		Model:           resp.Model,
	}, nil
}

// Prompt renders the scan as plain text for the model.
func Prompt(settings model.ScanSettings, result model.ScanResult, topN int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s", settings.Target.Name)
	if settings.Target.Address != "" {
		fmt.Fprintf(&b, " (%s)", settings.Target.Address)
	}
	fmt.Fprintf(&b, "\nKeyword: %s\nGrid: %s\n", settings.SearchQuery, result.GridSpec)
	fmt.Fprintf(&b, "Points scored: %d/%d\n", len(result.RankingPoints), result.TotalPoints)
	fmt.Fprintf(&b, "Average rank: %.2f\nTop 3: %.0f%%\nTop 10: %.0f%%\n",
		result.Summary.AverageRank, result.Summary.Top3Percentage, result.Summary.Top10Percentage)

	b.WriteString("\nRank by grid cell (row by row, north first):\n")
	cells := make(map[[2]int]model.RankingPoint, len(result.RankingPoints))
	for _, p := range result.RankingPoints {
		cells[[2]int{p.Row, p.Col}] = p
	}
	for row := 0; row < result.GridSpec.Rows; row++ {
		line := make([]string, result.GridSpec.Columns)
		for col := range line {
			p, ok := cells[[2]int{row, col}]
			switch {
			case !ok:
				line[col] = "-"
			case !p.TargetFound:
				line[col] = "X"
			default:
				line[col] = model.DisplayRank(p.TargetRank, model.DisplayRankCutoff)
			}
		}
		b.WriteString(strings.Join(line, " "))
		b.WriteByte('\n')
	}

	b.WriteString("\nCompetitors by average rank:\n")
	for i, s := range result.CompetitorStandings {
		if i >= topN {
			break
		}
		marker := ""
		if s.Business.ID == result.TargetID {
			marker = " (this business)"
		}
		fmt.Fprintf(&b, "%d. %s%s: %.2f\n", i+1, s.Business.Name, marker, s.AverageRank)
	}
	return b.String()
}
