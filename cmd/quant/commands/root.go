package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/equitysim/pkg/config"
	"github.com/wonny/equitysim/pkg/logger"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "EquitySim - 롱/숏 포트폴리오 시뮬레이터",
	Long: `EquitySim Unified CLI

Cross-sectional long/short portfolio simulation over daily model
estimates or discrete signals, with an append-only order audit log.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant backtest run --input data/predictions.csv
  go run ./cmd/quant backtest validate --strategy config/strategy/rule_based.yaml
  go run ./cmd/quant api
  go run ./cmd/quant scheduler start
  go run ./cmd/quant test-db`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment (development|staging|production), overrides ENV")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadRuntime loads process config and builds the logger, applying global flags
func loadRuntime() (*config.Config, *logger.Logger, error) {
	if env != "" {
		os.Setenv("ENV", env)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	return cfg, logger.New(cfg), nil
}
