// Package audit records completed reconciliation runs to Postgres.
//
// Recording is optional: the pipeline carries no persistent state, and
// history exists only so operators can see what ran and with what
// outcome. When DATABASE_URL is unset the store is never constructed
// and the service skips recording entirely.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultHistoryLimit caps Recent queries when the caller passes no
// explicit limit.
const DefaultHistoryLimit = 50

const createTableSQL = `
CREATE TABLE IF NOT EXISTS run_history (
	id              BIGSERIAL PRIMARY KEY,
	run_id          UUID        NOT NULL,
	threshold       INT         NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL,
	status          TEXT        NOT NULL,
	error           TEXT        NOT NULL DEFAULT '',
	selected_titles INT         NOT NULL DEFAULT 0,
	unique_matches  INT         NOT NULL DEFAULT 0,
	conflicts       INT         NOT NULL DEFAULT 0,
	resolved        INT         NOT NULL DEFAULT 0,
	skipped         INT         NOT NULL DEFAULT 0,
	unmatched       INT         NOT NULL DEFAULT 0,
	inventory_rows  INT         NOT NULL DEFAULT 0,
	product_rows    INT         NOT NULL DEFAULT 0,
	duration_ms     BIGINT      NOT NULL DEFAULT 0,
	recorded_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS run_history_started_at_idx ON run_history (started_at DESC);
`

// RunRecord is one row of run history.
type RunRecord struct {
	RunID     string    `json:"runId"`
	Threshold int       `json:"threshold"`
	StartedAt time.Time `json:"startedAt"`
	Status    string    `json:"status"` // "complete" or "failed"
	Error     string    `json:"error,omitempty"`

	SelectedTitles int `json:"selectedTitles"`
	UniqueMatches  int `json:"uniqueMatches"`
	Conflicts      int `json:"conflicts"`
	Resolved       int `json:"resolved"`
	Skipped        int `json:"skipped"`
	Unmatched      int `json:"unmatched"`
	InventoryRows  int `json:"inventoryRows"`
	ProductRows    int `json:"productRows"`

	DurationMs int64 `json:"durationMs"`
}

// Store persists run history in Postgres through a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store and ensures the run_history table exists.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("ensure run_history table: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Record inserts one run-history row.
func (s *Store) Record(ctx context.Context, rec RunRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO run_history (
			run_id, threshold, started_at, status, error,
			selected_titles, unique_matches, conflicts, resolved,
			skipped, unmatched, inventory_rows, product_rows, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.RunID, rec.Threshold, rec.StartedAt, rec.Status, rec.Error,
		rec.SelectedTitles, rec.UniqueMatches, rec.Conflicts, rec.Resolved,
		rec.Skipped, rec.Unmatched, rec.InventoryRows, rec.ProductRows,
		rec.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert run history: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT run_id, threshold, started_at, status, error,
		       selected_titles, unique_matches, conflicts, resolved,
		       skipped, unmatched, inventory_rows, product_rows, duration_ms
		FROM run_history
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query run history: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.RunID, &rec.Threshold, &rec.StartedAt, &rec.Status, &rec.Error,
			&rec.SelectedTitles, &rec.UniqueMatches, &rec.Conflicts, &rec.Resolved,
			&rec.Skipped, &rec.Unmatched, &rec.InventoryRows, &rec.ProductRows,
			&rec.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("scan run history row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
