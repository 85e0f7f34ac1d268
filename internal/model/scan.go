package model

import (
	"fmt"
	"strconv"
	"time"
)

// DisplayRankCutoff is the rank above which the UI shows "20+" instead of a number.
// It is a presentation rule only; stored ranks are never clamped.
const DisplayRankCutoff = 20

// GridSpec describes the sampling grid of a scan.
type GridSpec struct {
	Columns int     `json:"columns" yaml:"columns"`
	Rows    int     `json:"rows" yaml:"rows"`
	SpanKm  float64 `json:"span_km" yaml:"span_km"`
}

// Valid reports whether the spec can produce a grid.
func (g GridSpec) Valid() bool {
	return g.Columns >= 1 && g.Rows >= 1 && g.SpanKm >= 0
}

// Size returns the number of grid points.
func (g GridSpec) Size() int {
	return g.Columns * g.Rows
}

// String renders the spec in its textual form, e.g. "7 x 7 (1 km)".
func (g GridSpec) String() string {
	return fmt.Sprintf("%d x %d (%s km)", g.Columns, g.Rows, strconv.FormatFloat(g.SpanKm, 'f', -1, 64))
}

// GridPoint is one sample location. Index is row-major.
type GridPoint struct {
	Index      int        `json:"index" yaml:"index"`
	Row        int        `json:"row" yaml:"row"`
	Col        int        `json:"col" yaml:"col"`
	Coordinate Coordinate `json:"coordinate" yaml:"coordinate"`
}

// RankedEntry is a business at a 1-based rank within one grid point.
type RankedEntry struct {
	Rank     int      `json:"rank" yaml:"rank"`
	Business Business `json:"business" yaml:"business"`
}

// RankingPoint is the scored result for one grid point.
type RankingPoint struct {
	ID         int `json:"id" yaml:"id"` // GridPoint.Index
	Row        int `json:"row" yaml:"row"`
	Col        int `json:"col" yaml:"col"`
	TargetRank int `json:"target_rank" yaml:"target_rank"`
	// TargetFound is false when the target was missing from the ranking; TargetRank
	// then holds len(candidates)+1 so averages stay defined.
	TargetFound   bool          `json:"target_found" yaml:"target_found"`
	Coordinate    Coordinate    `json:"coordinate" yaml:"coordinate"`
	RankedEntries []RankedEntry `json:"ranked_entries" yaml:"ranked_entries"`
}

// ScanSummary holds the target's aggregate statistics over successful points.
type ScanSummary struct {
	AverageRank     float64 `json:"average_rank" yaml:"average_rank"`
	Top3Percentage  float64 `json:"top3_percentage" yaml:"top3_percentage"`
	Top10Percentage float64 `json:"top10_percentage" yaml:"top10_percentage"`
}

// CompetitorStanding is a business's average rank across the scan.
type CompetitorStanding struct {
	Business    Business `json:"business" yaml:"business"`
	AverageRank float64  `json:"average_rank" yaml:"average_rank"`
}

// PointFailure records a grid point that could not be scored.
type PointFailure struct {
	Index int    `json:"index" yaml:"index"`
	Error string `json:"error" yaml:"error"`
}

// ScanResult is the immutable outcome of one scan.
type ScanResult struct {
	TargetID            string               `json:"target_id" yaml:"target_id"`
	Summary             ScanSummary          `json:"summary" yaml:"summary"`
	RankingPoints       []RankingPoint       `json:"ranking_points" yaml:"ranking_points"`
	GridSpecText        string               `json:"grid_spec_text" yaml:"grid_spec_text"`
	GridSpec            GridSpec             `json:"grid_spec" yaml:"grid_spec"`
	CompetitorStandings []CompetitorStanding `json:"competitor_standings" yaml:"competitor_standings"`
	AttributionSources  []Source             `json:"attribution_sources" yaml:"attribution_sources"`
	TotalPoints         int                  `json:"total_points" yaml:"total_points"`
	SkippedPoints       int                  `json:"skipped_points" yaml:"skipped_points"`
	Failures            []PointFailure       `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Competitors returns the standings without the target business.
func (r ScanResult) Competitors() []CompetitorStanding {
	out := make([]CompetitorStanding, 0, len(r.CompetitorStandings))
	for _, s := range r.CompetitorStandings {
		if s.Business.ID == r.TargetID {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Complete reports whether every grid point was scored.
func (r ScanResult) Complete() bool {
	return r.SkippedPoints == 0
}

// PointAt returns the ranking point for a grid index, if it was scored.
func (r ScanResult) PointAt(index int) (RankingPoint, bool) {
	for _, p := range r.RankingPoints {
		if p.ID == index {
			return p, true
		}
	}
	return RankingPoint{}, false
}

// ScanSettings are the inputs a scan was started with.
type ScanSettings struct {
	Target       Business `json:"target" yaml:"target"`
	SearchQuery  string   `json:"search_query" yaml:"search_query"`
	GridSpecText string   `json:"grid_spec_text" yaml:"grid_spec_text"`
}

// Insight is narrative analysis generated for a completed scan.
type Insight struct {
	Summary         string   `json:"summary" yaml:"summary"`
	Strengths       []string `json:"strengths" yaml:"strengths"`
	Weaknesses      []string `json:"weaknesses" yaml:"weaknesses"`
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
	Sources         []Source `json:"sources,omitempty" yaml:"sources,omitempty"`
	Model           string   `json:"model,omitempty" yaml:"model,omitempty"`
}

// HistoryEntry is one persisted scan.
type HistoryEntry struct {
	ID        string       `json:"id" yaml:"id"`
	Timestamp time.Time    `json:"timestamp" yaml:"timestamp"`
	Settings  ScanSettings `json:"settings" yaml:"settings"`
	Result    ScanResult   `json:"result" yaml:"result"`
	Insight   *Insight     `json:"insight,omitempty" yaml:"insight,omitempty"`
}

// DisplayRank formats a rank for presentation, collapsing ranks above cutoff.
func DisplayRank(rank, cutoff int) string {
	if cutoff > 0 && rank > cutoff {
		return fmt.Sprintf("%d+", cutoff)
	}
	return strconv.Itoa(rank)
}
