// Package export writes stored scans as CSV, JSON or YAML.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/rendis/gridrank/internal/model"
)

// Format is an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Table selects which CSV table to write.
type Table string

const (
	TablePoints      Table = "points"
	TableCompetitors Table = "competitors"
)

// ParseFormat accepts csv, json, yaml or yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv", "":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", eris.Errorf("export: unsupported format %q", s)
}

// Write encodes entry in format. table only applies to CSV.
func Write(w io.Writer, entry model.HistoryEntry, format Format, table Table) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, entry, table)
	case FormatJSON:
		return WriteJSON(w, entry)
	case FormatYAML:
		return WriteYAML(w, entry)
	}
	return eris.Errorf("export: unsupported format %q", format)
}

// WriteCSV writes one row per ranking point, or one row per competitor standing.
func WriteCSV(w io.Writer, entry model.HistoryEntry, table Table) error {
	cw := csv.NewWriter(w)

	var rows [][]string
	switch table {
	case TablePoints, "":
		rows = pointRows(entry.Result)
	case TableCompetitors:
		rows = competitorRows(entry.Result)
	default:
		return eris.Errorf("export: unknown table %q", table)
	}

	if err := cw.WriteAll(rows); err != nil {
		return eris.Wrap(err, "export: write csv")
	}
	return nil
}

func pointRows(r model.ScanResult) [][]string {
	rows := [][]string{{
		"index", "row", "col", "lat", "lng", "target_rank", "target_found", "display_rank", "leader",
	}}
	for _, p := range r.RankingPoints {
		leader := ""
		if len(p.RankedEntries) > 0 {
			leader = p.RankedEntries[0].Business.Name
		}
		rows = append(rows, []string{
			strconv.Itoa(p.ID),
			strconv.Itoa(p.Row),
			strconv.Itoa(p.Col),
			fmt.Sprintf("%.6f", p.Coordinate.Lat),
			fmt.Sprintf("%.6f", p.Coordinate.Lng),
			strconv.Itoa(p.TargetRank),
			strconv.FormatBool(p.TargetFound),
			model.DisplayRank(p.TargetRank, model.DisplayRankCutoff),
			leader,
		})
	}
	return rows
}

func competitorRows(r model.ScanResult) [][]string {
	rows := [][]string{{
		"position", "id", "name", "address", "average_rank", "is_target", "rating", "review_count",
	}}
	for i, s := range r.CompetitorStandings {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			s.Business.ID,
			s.Business.Name,
			s.Business.Address,
			fmt.Sprintf("%.2f", s.AverageRank),
			strconv.FormatBool(s.Business.ID == r.TargetID),
			fmt.Sprintf("%.1f", s.Business.Rating),
			strconv.Itoa(s.Business.ReviewCount),
		})
	}
	return rows
}

// WriteJSON writes the full entry as indented JSON.
func WriteJSON(w io.Writer, entry model.HistoryEntry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entry); err != nil {
		return eris.Wrap(err, "export: write json")
	}
	return nil
}

// WriteYAML writes the full entry as YAML.
func WriteYAML(w io.Writer, entry model.HistoryEntry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entry); err != nil {
		return eris.Wrap(err, "export: write yaml")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "export: flush yaml")
	}
	return nil
}
