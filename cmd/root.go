package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verdantiq/esg-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "esg-cli",
	Short: "ESG report ingestion and normalization pipeline",
	Long:  "Ingests heterogeneous spreadsheet-like ESG reports, normalizes them into canonical versioned metric records, and scores data quality.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
