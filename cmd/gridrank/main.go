package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rendis/gridrank/internal/app"
	"github.com/rendis/gridrank/internal/config"
	"github.com/rendis/gridrank/internal/tui"
)

var version = "dev"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "gridrank",
	Short: "Local search rank grid scanner",
	Long: "Ranks a business against its competitors at every point of a geographic grid " +
		"and reports where it shows up in the top results. Run without a command for the interactive UI.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		// the TUI owns the terminal, so logs go to a file
		if cmd == cmd.Root() && cfg.Log.File == "" {
			cfg.Log.File = filepath.Join(config.DataDir(), "gridrank.log")
		}
		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		deps, err := initDeps()
		if err != nil {
			return err
		}
		defer deps.Close() //nolint:errcheck

		return tui.Run(deps, version)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "gridrank "+version)
	},
}

func initDeps() (*app.Deps, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, eris.Wrap(err, "create data dir")
	}
	return app.New(cfg)
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
