package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rendis/gridrank/internal/model"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect stored scans",
}

// -- history list --

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored scans, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		deps, err := initDeps()
		if err != nil {
			return err
		}
		defer deps.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := deps.Store.List(cmd.Context(), limit)
		if err != nil {
			return eris.Wrap(err, "history list")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No scans found.")
			return nil
		}

		formatHistoryList(cmd.OutOrStdout(), entries)
		return nil
	},
}

// -- history show --

var historyShowCmd = &cobra.Command{
	Use:   "show <scan-id>",
	Short: "Show a stored scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := initDeps()
		if err != nil {
			return err
		}
		defer deps.Close() //nolint:errcheck

		entry, err := deps.Store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		formatHistoryEntry(cmd.OutOrStdout(), *entry)
		return nil
	},
}

// -- history delete --

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <scan-id>",
	Short: "Delete a stored scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := initDeps()
		if err != nil {
			return err
		}
		defer deps.Close() //nolint:errcheck

		if err := deps.Store.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Deleted %s\n", args[0])
		return nil
	},
}

func formatHistoryList(w io.Writer, entries []model.HistoryEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tBUSINESS\tQUERY\tGRID\tPOINTS\tAVG RANK")
	for _, e := range entries {
		r := e.Result
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%.2f\n",
			e.ID,
			e.Timestamp.Local().Format(time.DateTime),
			e.Settings.Target.Name,
			e.Settings.SearchQuery,
			r.GridSpec,
			len(r.RankingPoints), r.TotalPoints,
			r.Summary.AverageRank,
		)
	}
	_ = tw.Flush()
}

func formatHistoryEntry(w io.Writer, e model.HistoryEntry) {
	r := e.Result
	fmt.Fprintf(w, "Scan %s (%s)\n", e.ID, e.Timestamp.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  Business:  %s [%s]\n", e.Settings.Target.Name, e.Settings.Target.ID)
	if e.Settings.Target.Address != "" {
		fmt.Fprintf(w, "  Address:   %s\n", e.Settings.Target.Address)
	}
	fmt.Fprintf(w, "  Center:    %s\n", e.Settings.Target.Location)
	fmt.Fprintf(w, "  Query:     %s\n", e.Settings.SearchQuery)
	fmt.Fprintf(w, "  Grid:      %s (requested %q)\n", r.GridSpec, e.Settings.GridSpecText)
	fmt.Fprintf(w, "  Points:    %d/%d\n", len(r.RankingPoints), r.TotalPoints)
	fmt.Fprintf(w, "  Avg rank:  %.2f  top3 %.1f%%  top10 %.1f%%\n",
		r.Summary.AverageRank, r.Summary.Top3Percentage, r.Summary.Top10Percentage)
	fmt.Fprintln(w)
	fmt.Fprint(w, renderGrid(r))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Standings:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, s := range r.CompetitorStandings {
		marker := ""
		if s.Business.ID == r.TargetID {
			marker = " *"
		}
		fmt.Fprintf(tw, "  %d.\t%s%s\t%.2f\n", i+1, s.Business.Name, marker, s.AverageRank)
	}
	_ = tw.Flush()

	if len(r.AttributionSources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		for _, src := range r.AttributionSources {
			fmt.Fprintf(w, "  %s  %s\n", src.Title, src.URI)
		}
	}

	if e.Insight != nil {
		fmt.Fprintln(w)
		formatInsight(w, *e.Insight)
	}
}

func formatInsight(w io.Writer, in model.Insight) {
	fmt.Fprintln(w, "Insight:")
	fmt.Fprintf(w, "  %s\n", in.Summary)
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(w, "  %s:\n", title)
		for _, it := range items {
			fmt.Fprintf(w, "    - %s\n", strings.TrimSpace(it))
		}
	}
	section("Strengths", in.Strengths)
	section("Weaknesses", in.Weaknesses)
	section("Recommendations", in.Recommendations)
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "max scans to list; 0 lists all")

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}
