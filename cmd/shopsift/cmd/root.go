// Package cmd implements the shopsift command tree.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shopsift/shopsift/internal/config"
	"github.com/shopsift/shopsift/internal/logging"
)

// cfg is loaded once in the root PersistentPreRunE and shared by all
// subcommands.
var cfg *config.Config

// Version information set by main.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "shopsift",
	Short: "Reconcile product titles across e-commerce exports",
	Long: `Shopsift matches a hand-curated list of product titles against
inventory exports using fuzzy string similarity, resolves ambiguous
matches interactively or via explicit decisions, and emits filtered
inventory and product CSVs containing only the selected items.

Run "shopsift run" for one-shot CLI reconciliation or "shopsift serve"
to expose the same pipeline as an HTTP API.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the command tree with signal-aware context.
func Execute(version, commit, date string) {
	Version = version
	Commit = commit
	Date = date
	rootCmd.Version = version

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setup loads environment, configuration and logging before any
// subcommand runs.
func setup(_ *cobra.Command, _ []string) error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err == nil {
		slog.Debug("loaded .env file")
	}

	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg = loaded

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return nil
}
