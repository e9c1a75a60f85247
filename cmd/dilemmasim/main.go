// Command dilemmasim sweeps the spatial Prisoner's Dilemma over the
// (Dg, Dr) plane and stores the resulting phase diagrams.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/talgya/spatial-dilemma/internal/config"
	"github.com/talgya/spatial-dilemma/internal/logging"
	"github.com/talgya/spatial-dilemma/internal/persistence"
)

var version = "0.1.0-dev"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dilemmasim",
		Short: "Spatial Prisoner's Dilemma phase-diagram sweeps",
		Long: `dilemmasim runs evolutionary Prisoner's Dilemma games on a network of
agents and sweeps the dilemma strengths Dg (greed) and Dr (risk) over a grid,
recording the final fraction of cooperators at every point.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().String("db", "", "SQLite results database (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSweepCmd(),
		newRunCmd(),
		newTraceCmd(),
		newEnsembleCmd(),
		newServeCmd(),
	)
	return rootCmd
}

// loadConfig resolves defaults, the config file, the environment, and
// the command's flags, in that order, then installs the logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, nil
}

// openDB opens the configured database, or returns nil when storage is
// disabled.
func openDB(cfg *config.Config) (*persistence.DB, error) {
	if cfg.Storage.DBPath == "" {
		return nil, nil
	}
	if dir := filepath.Dir(cfg.Storage.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := persistence.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("database opened", "path", cfg.Storage.DBPath)
	return db, nil
}
