package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var insightCmd = &cobra.Command{
	Use:   "insight <scan-id>",
	Short: "Generate an AI analysis of a stored scan",
	Long:  "Asks Claude for strengths, weaknesses and recommendations based on the scan and stores them with it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		deps, err := initDeps()
		if err != nil {
			return err
		}
		defer deps.Close() //nolint:errcheck

		gen, err := deps.Insight()
		if err != nil {
			return err
		}

		entry, err := deps.Store.Get(ctx, args[0])
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		if entry.Insight != nil && !force {
			formatInsight(cmd.OutOrStdout(), *entry.Insight)
			return nil
		}

		in, err := gen.Generate(ctx, entry.Settings, entry.Result)
		if err != nil {
			return err
		}
		if err := deps.Store.SaveInsight(ctx, entry.ID, *in); err != nil {
			zap.L().Warn("insight not stored", zap.String("scan", entry.ID), zap.Error(err))
			fmt.Fprintln(os.Stderr, "warning: insight was not stored")
		}

		formatInsight(cmd.OutOrStdout(), *in)
		return nil
	},
}

func init() {
	insightCmd.Flags().Bool("force", false, "regenerate even when the scan already has an insight")
	rootCmd.AddCommand(insightCmd)
}
