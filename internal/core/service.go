package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shopsift/shopsift/internal/audit"
	"github.com/shopsift/shopsift/internal/config"
	"github.com/shopsift/shopsift/internal/resolve"
	"github.com/shopsift/shopsift/internal/table"
)

// ErrRunNotFound is returned for unknown or expired run IDs.
var ErrRunNotFound = errors.New("run not found")

// ErrRunNotComplete is returned when outputs are requested before the
// run's conflicts are resolved.
var ErrRunNotComplete = errors.New("run not complete")

// ErrAlreadyResolved is returned when resolutions are submitted to a
// run that already settled its conflicts. Decisions are terminal.
var ErrAlreadyResolved = errors.New("conflicts already resolved")

// Service manages reconciliation run sessions for the HTTP frontend.
// Each run operates on its own copies of the input tables; no mutable
// state is shared between runs.
type Service struct {
	cfg     *config.Config
	history *audit.Store // nil when run history is disabled

	mu   sync.RWMutex
	runs map[string]*runSession
}

type runSession struct {
	ID        string
	CreatedAt time.Time
	Threshold int

	mu     sync.Mutex
	phase  RunPhase
	prep   *prepared
	pipe   *Pipeline
	result *RunResult
}

// NewService creates a Service. history may be nil to disable run
// history recording.
func NewService(cfg *config.Config, history *audit.Store) *Service {
	return &Service{
		cfg:     cfg,
		history: history,
		runs:    make(map[string]*runSession),
	}
}

// StartRun parses nothing itself: it receives decoded tables, runs the
// matching pass synchronously, and either completes immediately (no
// conflicts) or suspends awaiting resolutions. The returned status
// carries the conflict list when suspended.
func (s *Service) StartRun(ctx context.Context, in Inputs, threshold int) (*RunStatus, error) {
	run := &runSession{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Threshold: threshold,
		pipe:      &Pipeline{Threshold: threshold},
	}

	prep, err := run.pipe.prepare(in)
	if err != nil {
		s.recordRun(ctx, run, nil, err)
		return nil, err
	}
	run.prep = prep

	if len(prep.match.Conflicts) == 0 {
		result, err := run.pipe.finalize(ctx, prep, resolve.SkipAll)
		if err != nil {
			s.recordRun(ctx, run, nil, err)
			return nil, err
		}
		run.phase = PhaseComplete
		run.result = result
		s.recordRun(ctx, run, result, nil)
	} else {
		run.phase = PhaseAwaitingResolutions
	}

	// Snapshot before the run becomes reachable through the map; after
	// publication run.mu would be required.
	st := run.status()

	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()
	s.expireAfter(run.ID, s.cfg.Session.TTL)

	slog.Info("run started",
		"run_id", st.ID,
		"phase", st.Phase,
		"threshold", threshold,
		"conflicts", len(prep.match.Conflicts),
		"unmatched", len(prep.match.Unmatched),
	)

	return st, nil
}

// SubmitResolutions settles a suspended run with per-title decisions:
// each value is a candidate title or "skip". Conflicts absent from the
// map are skipped and reported in the summary. A decision naming a
// title outside the offered candidates rejects the whole submission
// and leaves the run awaiting.
func (s *Service) SubmitResolutions(ctx context.Context, runID string, decisions map[string]string) (*RunStatus, error) {
	run, err := s.get(runID)
	if err != nil {
		return nil, err
	}

	run.mu.Lock()
	defer run.mu.Unlock()

	switch run.phase {
	case PhaseAwaitingResolutions:
		// proceed
	case PhaseComplete:
		return nil, ErrAlreadyResolved
	default:
		return nil, fmt.Errorf("run %s is %s", runID, run.phase)
	}

	result, err := run.pipe.finalize(ctx, run.prep, resolve.StaticProvider(decisions))
	if err != nil {
		// Invalid submissions do not consume the run's single
		// resolution; the client may correct and resubmit.
		return nil, err
	}

	run.phase = PhaseComplete
	run.result = result
	s.recordRun(ctx, run, result, nil)

	slog.Info("run completed",
		"run_id", run.ID,
		"resolved", result.Summary.ResolvedConflicts,
		"skipped", len(result.Summary.SkippedConflicts),
		"inventory_rows", result.Summary.FilteredInventoryRows,
	)

	return run.status(), nil
}

// Status returns the current state of a run.
func (s *Service) Status(runID string) (*RunStatus, error) {
	run, err := s.get(runID)
	if err != nil {
		return nil, err
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.status(), nil
}

// FilteredInventory returns the filtered inventory table of a
// completed run.
func (s *Service) FilteredInventory(runID string) (*table.Table, error) {
	result, err := s.completedResult(runID)
	if err != nil {
		return nil, err
	}
	return result.FilteredInventory, nil
}

// FilteredProduct returns the filtered product table of a completed
// run, or the explicit skip signal when the Handle join did not apply.
func (s *Service) FilteredProduct(runID string) (*table.Table, error) {
	result, err := s.completedResult(runID)
	if err != nil {
		return nil, err
	}
	if result.FilteredProduct == nil {
		return nil, fmt.Errorf("%s", result.Summary.SkipReason)
	}
	return result.FilteredProduct, nil
}

// History returns recent run-history entries, oldest last. Fails when
// history recording is disabled.
func (s *Service) History(ctx context.Context, limit int) ([]audit.RunRecord, error) {
	if s.history == nil {
		return nil, errors.New("run history is not configured")
	}
	return s.history.Recent(ctx, limit)
}

// HistoryEnabled reports whether run history recording is configured.
func (s *Service) HistoryEnabled() bool {
	return s.history != nil
}

func (s *Service) get(runID string) (*runSession, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

func (s *Service) completedResult(runID string) (*RunResult, error) {
	run, err := s.get(runID)
	if err != nil {
		return nil, err
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.phase != PhaseComplete {
		return nil, fmt.Errorf("%w: %s is %s", ErrRunNotComplete, runID, run.phase)
	}
	return run.result, nil
}

// expireAfter drops the session once its TTL passes. Runs left
// awaiting resolutions simply disappear; their conflicts were never
// settled and no outputs exist.
func (s *Service) expireAfter(runID string, ttl time.Duration) {
	time.AfterFunc(ttl, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}

// recordRun writes a history entry when a store is configured.
// History failures are logged, never surfaced: observability must not
// break the pipeline.
func (s *Service) recordRun(ctx context.Context, run *runSession, result *RunResult, runErr error) {
	if s.history == nil {
		return
	}

	rec := audit.RunRecord{
		RunID:     run.ID,
		Threshold: run.Threshold,
		StartedAt: run.CreatedAt,
		Status:    "complete",
	}
	if runErr != nil {
		rec.Status = "failed"
		rec.Error = runErr.Error()
	}
	if result != nil {
		rec.SelectedTitles = result.Summary.SelectedTitles
		rec.UniqueMatches = result.Summary.UniqueMatches
		rec.Conflicts = result.Summary.ConflictCount
		rec.Resolved = result.Summary.ResolvedConflicts
		rec.Skipped = len(result.Summary.SkippedConflicts)
		rec.Unmatched = len(result.Summary.Unmatched)
		rec.InventoryRows = result.Summary.FilteredInventoryRows
		rec.ProductRows = result.Summary.FilteredProductRows
		rec.DurationMs = result.Summary.DurationMs
	}

	if err := s.history.Record(ctx, rec); err != nil {
		slog.Warn("run history write failed", "run_id", run.ID, "error", err)
	}
}

// status builds the external view; callers hold run.mu.
func (run *runSession) status() *RunStatus {
	st := &RunStatus{
		ID:        run.ID,
		Phase:     run.phase,
		Threshold: run.Threshold,
		CreatedAt: run.CreatedAt,
	}
	if run.phase == PhaseAwaitingResolutions && run.prep != nil {
		st.Conflicts = run.prep.match.Conflicts
	}
	if run.result != nil {
		st.Summary = &run.result.Summary
	}
	return st
}

// ValidThreshold checks a caller-supplied threshold against the 0-100
// contract before a run starts.
func ValidThreshold(t int) error {
	if t < 0 || t > 100 {
		return fmt.Errorf("threshold %d out of range 0-100", t)
	}
	return nil
}
