// Package core provides the business logic for title reconciliation
// runs. This package has no UI dependencies and can be used by any
// frontend.
package core

import (
	"time"

	"github.com/shopsift/shopsift/internal/match"
	"github.com/shopsift/shopsift/internal/table"
)

// HandleColumn is the canonical, system-generated product key used for
// the exact-match product join (contrast with free-text Title).
const HandleColumn = "Handle"

// RunPhase indicates the current stage of a reconciliation run.
type RunPhase string

const (
	// PhaseAwaitingResolutions means matching found ambiguous titles
	// and the run is suspended until decisions arrive.
	PhaseAwaitingResolutions RunPhase = "awaiting_resolutions"

	// PhaseComplete means the run produced its output tables.
	PhaseComplete RunPhase = "complete"
)

// Inputs are the three decoded table roles of one run. Product and
// Inventory may arrive as several same-schema files; Selected is
// exactly one.
type Inputs struct {
	Product   []*table.Table
	Inventory []*table.Table
	Selected  *table.Table
}

// RunSummary is the user-facing account of what a run did. Unmatched
// and skipped titles are itemized rather than just counted so the
// caller can act on each one.
type RunSummary struct {
	ProductRows    int `json:"productRows"`
	InventoryRows  int `json:"inventoryRows"`
	SelectedTitles int `json:"selectedTitles"`

	UniqueMatches     int      `json:"uniqueMatches"`
	ConflictCount     int      `json:"conflictCount"`
	ResolvedConflicts int      `json:"resolvedConflicts"`
	SkippedConflicts  []string `json:"skippedConflicts,omitempty"`
	Unmatched         []string `json:"unmatched,omitempty"`

	// SpecialCharTitles lists titles containing characters outside the
	// word/space/hyphen set. Diagnostic only; never blocks the run.
	SpecialCharTitles []string `json:"specialCharTitles,omitempty"`

	FilteredInventoryRows int `json:"filteredInventoryRows"`
	FilteredProductRows   int `json:"filteredProductRows"`

	// ProductFilterSkipped is set when either side of the Handle join
	// lacks the Handle column; the join is then skipped entirely and
	// SkipReason says why.
	ProductFilterSkipped bool   `json:"productFilterSkipped"`
	SkipReason           string `json:"skipReason,omitempty"`

	DurationMs int64 `json:"durationMs"`
}

// RunResult holds the output tables of a completed run.
// FilteredProduct is nil when the Handle join was skipped.
type RunResult struct {
	FilteredInventory *table.Table
	FilteredProduct   *table.Table
	Summary           RunSummary
}

// RunStatus is the externally visible state of a run session.
type RunStatus struct {
	ID        string           `json:"id"`
	Phase     RunPhase         `json:"phase"`
	Threshold int              `json:"threshold"`
	Conflicts []match.Conflict `json:"conflicts,omitempty"`
	Summary   *RunSummary      `json:"summary,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}
