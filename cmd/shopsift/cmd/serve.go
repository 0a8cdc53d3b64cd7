package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/shopsift/shopsift/internal/audit"
	"github.com/shopsift/shopsift/internal/core"
	"github.com/shopsift/shopsift/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciliation HTTP API",
	Long: `Serve exposes the reconciliation pipeline over HTTP. Clients upload
the three export roles to POST /api/runs, settle conflicts via
POST /api/runs/{id}/resolutions, and download the filtered CSVs.

Run history recording is enabled by setting DATABASE_URL; without it
the server keeps no state beyond in-memory run sessions.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"threshold", cfg.Match.Threshold,
		"session_ttl", cfg.Session.TTL,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"history_enabled", cfg.Database.HistoryEnabled(),
	)

	var history *audit.Store
	if cfg.Database.HistoryEnabled() {
		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		history, err = audit.New(ctx, pool)
		if err != nil {
			return fmt.Errorf("init run history: %w", err)
		}
		slog.Info("run history enabled")
	}

	service := core.NewService(cfg, history)
	server := web.NewServer(service, cfg)

	// Graceful shutdown on the signal-aware root context
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Server.Addr())
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
			return err
		}
		return nil
	}
}

// connectPool builds and verifies the pgx pool for run history.
func connectPool(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
