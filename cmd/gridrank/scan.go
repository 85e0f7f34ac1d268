package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rendis/gridrank/internal/app"
	"github.com/rendis/gridrank/internal/engine/discovery"
	"github.com/rendis/gridrank/internal/engine/export"
	"github.com/rendis/gridrank/internal/engine/geo"
	"github.com/rendis/gridrank/internal/engine/scan"
	"github.com/rendis/gridrank/internal/model"
	"github.com/rendis/gridrank/internal/tui/components"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a headless rank grid scan",
	Long: "Discovers competitors for the query, ranks the target at every grid point and stores the result.\n" +
		"Without --lat/--lng the target location is geocoded from --address.",
	Example: `  gridrank scan --name "Café Central" --address "Plaza del Ángel 10, Madrid" --query "coffee shop"
  gridrank scan --name "Café Central" --lat 40.4146 --lng -3.7004 --query cafe --grid "9 x 9 (3 km)" --json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := zap.L().With(zap.String("command", "scan"))

		deps, err := initDeps()
		if err != nil {
			return err
		}
		defer deps.Close() //nolint:errcheck

		settings, err := settingsFromFlags(cmd)
		if err != nil {
			return err
		}

		if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lng") {
			if settings.Target.Address == "" {
				return eris.New("either --lat and --lng or --address is required")
			}
			loc, err := deps.Geocoder.Geocode(ctx, settings.Target.Address)
			if err != nil {
				return eris.Wrap(err, "scan: locate target")
			}
			settings.Target.Location = loc
			fmt.Fprintf(os.Stderr, "Geocoded %q to %s\n", settings.Target.Address, loc)
		}

		spec, ok := geo.ParseGridSpec(settings.GridSpecText)
		if !ok {
			fmt.Fprintf(os.Stderr, "Grid %q not recognized, using %s\n", settings.GridSpecText, spec)
		}

		disc, _ := cmd.Flags().GetString("discovery")
		competitorsFile, _ := cmd.Flags().GetString("competitors")
		if competitorsFile != "" && !cmd.Flags().Changed("discovery") {
			disc = app.DiscoveryFile
		}
		workers, _ := cmd.Flags().GetInt("workers")
		jitter, seed := jitterFromFlags(cmd)
		abort, _ := cmd.Flags().GetBool("abort-on-discovery-failure")
		noSave, _ := cmd.Flags().GetBool("no-save")
		asJSON, _ := cmd.Flags().GetBool("json")

		svc, err := deps.NewService(app.ScanOptions{
			Discovery:       disc,
			CompetitorsFile: competitorsFile,
			Workers:         workers,
			Jitter:          jitter,
			Seed:            seed,
			AbortOnFailure:  abort,
			NoSave:          noSave,
			SpanKm:          spec.SpanKm,
		})
		if err != nil {
			return err
		}

		log.Info("scan started",
			zap.String("target", settings.Target.ID),
			zap.String("query", settings.SearchQuery),
			zap.String("grid", spec.String()),
		)

		start := time.Now()
		out, err := svc.Scan(ctx, settings, progressLine(os.Stderr))
		fmt.Fprintln(os.Stderr)
		if errors.Is(err, scan.ErrCanceled) {
			fmt.Fprintln(os.Stderr, "Scan canceled.")
			return err
		}
		if err != nil {
			return err
		}

		if out.SaveErr != nil {
			fmt.Fprintf(os.Stderr, "warning: result not saved: %v\n", out.SaveErr)
		}

		if asJSON {
			return export.WriteJSON(os.Stdout, model.HistoryEntry{
				ID:        out.HistoryID,
				Timestamp: start.UTC(),
				Settings:  settings,
				Result:    *out.Result,
			})
		}

		printSummary(os.Stderr, settings, out, time.Since(start))
		return nil
	},
}

func settingsFromFlags(cmd *cobra.Command) (model.ScanSettings, error) {
	name, _ := cmd.Flags().GetString("name")
	id, _ := cmd.Flags().GetString("id")
	address, _ := cmd.Flags().GetString("address")
	lat, _ := cmd.Flags().GetFloat64("lat")
	lng, _ := cmd.Flags().GetFloat64("lng")
	query, _ := cmd.Flags().GetString("query")
	grid, _ := cmd.Flags().GetString("grid")

	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	if name == "" {
		return model.ScanSettings{}, eris.New("--name is required")
	}
	if strings.TrimSpace(query) == "" {
		return model.ScanSettings{}, eris.New("--query is required")
	}
	if id == "" {
		id = discovery.DerivedID(name, address)
	}
	if grid == "" {
		grid = cfg.Scan.GridSpec
	}

	return model.ScanSettings{
		Target: model.Business{
			ID:       id,
			Name:     name,
			Address:  address,
			Location: model.Coordinate{Lat: lat, Lng: lng},
		},
		SearchQuery:  strings.TrimSpace(query),
		GridSpecText: grid,
	}, nil
}

const barWidth = 30

// jitterFromFlags returns the --jitter and --seed overrides, nil when the
// flag was not given so the configured value applies.
func jitterFromFlags(cmd *cobra.Command) (*float64, *uint64) {
	var (
		jitter *float64
		seed   *uint64
	)
	if cmd.Flags().Changed("jitter") {
		v, _ := cmd.Flags().GetFloat64("jitter")
		jitter = &v
	}
	if cmd.Flags().Changed("seed") {
		v, _ := cmd.Flags().GetUint64("seed")
		seed = &v
	}
	return jitter, seed
}

// progressLine redraws a single stderr line per completed point.
func progressLine(w io.Writer) scan.ProgressSink {
	return scan.ProgressFunc(func(current, total int) {
		filled := 0
		if total > 0 {
			filled = current * barWidth / total
		}
		bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
		fmt.Fprintf(w, "\r  %s %d/%d points", bar, current, total)
	})
}

// renderGrid draws the target rank per cell, north row first.
func renderGrid(r model.ScanResult) string {
	if !r.GridSpec.Valid() {
		return ""
	}
	var sb strings.Builder
	for row := 0; row < r.GridSpec.Rows; row++ {
		sb.WriteString("  ")
		for col := 0; col < r.GridSpec.Columns; col++ {
			p, ok := r.PointAt(row*r.GridSpec.Columns + col)
			fmt.Fprintf(&sb, "%4s", components.CellLabel(p, ok))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func printSummary(w io.Writer, s model.ScanSettings, out *scan.Outcome, d time.Duration) {
	r := out.Result
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "══════════════════════════════\n")
	fmt.Fprintf(w, "  Scan Complete\n")
	fmt.Fprintf(w, "══════════════════════════════\n")
	fmt.Fprintf(w, "  Business:   %s\n", s.Target.Name)
	fmt.Fprintf(w, "  Query:      %s\n", s.SearchQuery)
	fmt.Fprintf(w, "  Center:     %s\n", s.Target.Location)
	fmt.Fprintf(w, "  Grid:       %s\n", r.GridSpec)
	fmt.Fprintf(w, "  Points:     %d/%d\n", len(r.RankingPoints), r.TotalPoints)
	fmt.Fprintf(w, "  Avg rank:   %.2f\n", r.Summary.AverageRank)
	fmt.Fprintf(w, "  Top 3:      %.1f%%\n", r.Summary.Top3Percentage)
	fmt.Fprintf(w, "  Top 10:     %.1f%%\n", r.Summary.Top10Percentage)
	fmt.Fprintf(w, "  Rivals:     %d\n", len(r.Competitors()))
	fmt.Fprintf(w, "  Duration:   %s\n", d.Truncate(time.Millisecond))
	if out.HistoryID != "" {
		fmt.Fprintf(w, "  Saved as:   %s\n", out.HistoryID)
	}
	fmt.Fprintf(w, "══════════════════════════════\n")
	fmt.Fprint(w, renderGrid(*r))
}

func init() {
	f := scanCmd.Flags()
	f.String("name", "", "target business name (required)")
	f.String("id", "", "target business id (default: derived from name and address)")
	f.String("address", "", "target address, geocoded when --lat/--lng are not given")
	f.Float64("lat", 0, "target latitude")
	f.Float64("lng", 0, "target longitude")
	f.String("query", "", "search keyword (required)")
	f.String("grid", "", `grid spec, e.g. "7 x 7 (1 km)" (default: config scan.grid_spec)`)
	f.String("discovery", "", "competitor source: auto, maps, llm, file or none (default: config scan.discovery)")
	f.String("competitors", "", "JSON or YAML competitor list (implies --discovery file)")
	f.Int("workers", 0, "concurrent point workers (default: config scan.workers)")
	f.Float64("jitter", 0, "relative score jitter in [0, 1) (default: config scan.jitter)")
	f.Uint64("seed", 0, "jitter seed; 0 is unseeded (default: config scan.seed)")
	f.Bool("abort-on-discovery-failure", false, "fail the scan when competitor discovery fails")
	f.Bool("no-save", false, "do not store the result in history")
	f.Bool("json", false, "print the result as JSON on stdout")
	rootCmd.AddCommand(scanCmd)
}
