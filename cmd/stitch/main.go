// Command stitch consolidates financial statements extracted from a series of
// filings into one multi-period view per statement type.
package main

import (
	"fmt"
	"os"

	"statement_stitch/pkg/core/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "stitch",
		Short: "Stitch financial statements across filings",
		Long: `stitch reads spreadsheets, HTML, markdown or JSON filings, locates the
income statement, balance sheet and cash flow statement in each, and folds
them into one consolidated table per statement with restatements and
conflicts reported.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: ./config/stitch.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override logging.level")

	rootCmd.AddCommand(newConsolidateCmd(a), newInspectCmd(a), newShowCmd(a), newServeCmd(a))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
