package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopsift/shopsift/internal/match"
	"github.com/shopsift/shopsift/internal/resolve"
	"github.com/shopsift/shopsift/internal/table"
)

// ErrNoHandleColumn signals that the product join step was skipped
// because a table lacks the Handle column. Callers receive this
// explicitly instead of an empty or partial product table.
type ErrNoHandleColumn struct {
	Table string
}

func (e *ErrNoHandleColumn) Error() string {
	return fmt.Sprintf("table %q has no %q column; product filtering skipped", e.Table, HandleColumn)
}

// Pipeline runs one reconciliation pass: concat inputs, diagnose,
// match, resolve, filter, join. It is single-threaded and synchronous
// with one suspension point, the conflict decision provider. Stages
// never mutate their inputs.
type Pipeline struct {
	Threshold int
}

// prepared carries state between the matching pass and finalization,
// across the conflict-resolution suspension point.
type prepared struct {
	product   *table.Table
	inventory *table.Table
	selected  []string
	special   []string
	match     *match.Result
	started   time.Time
}

// prepare concatenates same-role inputs, runs diagnostics and the
// matching pass. Any error here aborts the run before partial
// processing occurs.
func (p *Pipeline) prepare(in Inputs) (*prepared, error) {
	started := time.Now()

	if len(in.Inventory) == 0 {
		return nil, fmt.Errorf("no inventory table provided")
	}
	if len(in.Product) == 0 {
		return nil, fmt.Errorf("no product table provided")
	}
	if in.Selected == nil {
		return nil, fmt.Errorf("no selected-products table provided")
	}

	product, err := table.Concat("product", in.Product...)
	if err != nil {
		return nil, err
	}
	inventory, err := table.Concat("inventory", in.Inventory...)
	if err != nil {
		return nil, err
	}

	if !in.Selected.HasColumn(match.TitleColumn) {
		return nil, &match.ErrNoTitleColumn{Table: in.Selected.Name}
	}

	// Special characters in titles degrade fuzzy scores; report them
	// up front but keep going.
	special := product.SpecialCharValues(match.TitleColumn)
	special = append(special, inventory.SpecialCharValues(match.TitleColumn)...)

	selected := in.Selected.DistinctValues(match.TitleColumn)

	matched, err := match.Titles(selected, inventory, p.Threshold)
	if err != nil {
		return nil, err
	}

	return &prepared{
		product:   product,
		inventory: inventory,
		selected:  selected,
		special:   special,
		match:     matched,
		started:   started,
	}, nil
}

// finalize settles conflicts through provider, assembles the filtered
// inventory, and applies the Handle join.
func (p *Pipeline) finalize(ctx context.Context, prep *prepared, provider resolve.Provider) (*RunResult, error) {
	outcome, err := resolve.Conflicts(ctx, prep.match.Conflicts, prep.inventory, provider)
	if err != nil {
		return nil, err
	}

	parts := make([]*table.Table, 0, len(prep.match.Unique)+len(outcome.Chosen))
	for _, u := range prep.match.Unique {
		parts = append(parts, u.Rows)
	}
	parts = append(parts, outcome.Chosen...)

	filteredInventory, err := BuildFilteredInventory(prep.inventory.Columns, parts)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		FilteredInventory: filteredInventory,
		Summary: RunSummary{
			ProductRows:           len(prep.product.Rows),
			InventoryRows:         len(prep.inventory.Rows),
			SelectedTitles:        len(prep.selected),
			UniqueMatches:         len(prep.match.Unique),
			ConflictCount:         len(prep.match.Conflicts),
			ResolvedConflicts:     len(outcome.Chosen),
			SkippedConflicts:      outcome.Skipped,
			Unmatched:             prep.match.Unmatched,
			SpecialCharTitles:     prep.special,
			FilteredInventoryRows: len(filteredInventory.Rows),
		},
	}

	filteredProduct, err := JoinByHandle(prep.product, filteredInventory)
	var noHandle *ErrNoHandleColumn
	switch {
	case errors.As(err, &noHandle):
		result.Summary.ProductFilterSkipped = true
		result.Summary.SkipReason = noHandle.Error()
	case err != nil:
		return nil, err
	default:
		result.FilteredProduct = filteredProduct
		result.Summary.FilteredProductRows = len(filteredProduct.Rows)
	}

	result.Summary.DurationMs = time.Since(prep.started).Milliseconds()
	return result, nil
}

// Run executes the whole pipeline in one pass, suspending on provider
// for each conflict. Used by the CLI; the service splits the pass at
// the suspension point instead.
func (p *Pipeline) Run(ctx context.Context, in Inputs, provider resolve.Provider) (*RunResult, error) {
	prep, err := p.prepare(in)
	if err != nil {
		return nil, err
	}
	return p.finalize(ctx, prep, provider)
}

// BuildFilteredInventory concatenates matched row subsets into one
// table and removes exact-duplicate rows, keeping first occurrence
// order. Every part must share the inventory schema; a disagreement is
// a schema-mismatch error. Zero parts yield an empty table.
func BuildFilteredInventory(columns []string, parts []*table.Table) (*table.Table, error) {
	if len(parts) == 0 {
		return table.New("filtered_inventory", columns), nil
	}
	combined, err := table.Concat("filtered_inventory", parts...)
	if err != nil {
		return nil, err
	}
	return combined.Dedupe(), nil
}

// JoinByHandle returns the subset of product rows whose Handle value
// appears among the filtered inventory's Handle values. Membership is
// exact string equality; Handle values are system-generated, so no
// fuzzy matching applies here. If either table lacks the Handle
// column the join is skipped entirely via ErrNoHandleColumn.
func JoinByHandle(product, filteredInventory *table.Table) (*table.Table, error) {
	if !product.HasColumn(HandleColumn) {
		return nil, &ErrNoHandleColumn{Table: product.Name}
	}
	if !filteredInventory.HasColumn(HandleColumn) {
		return nil, &ErrNoHandleColumn{Table: filteredInventory.Name}
	}

	handles := make(map[string]bool)
	for _, h := range filteredInventory.ColumnValues(HandleColumn) {
		if h != "" {
			handles[h] = true
		}
	}

	idx := product.ColumnIndex(HandleColumn)
	joined := product.Subset(func(row []string) bool {
		return idx < len(row) && handles[row[idx]]
	})
	joined.Name = "filtered_product"
	return joined.Dedupe(), nil
}
