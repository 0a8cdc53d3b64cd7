// Package resolve turns ambiguous match conflicts into row selections
// by consulting an external decision source. It is a pure state
// transition: one decision per conflict, no batch logic, no undo.
package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopsift/shopsift/internal/match"
	"github.com/shopsift/shopsift/internal/table"
)

// Skip is the decision value meaning "contribute nothing for this title".
const Skip = "skip"

// Decision is the outcome for one conflict: a chosen candidate title,
// or Skip. Once supplied it is terminal.
type Decision struct {
	Choice string
}

// IsSkip reports whether the decision declines every candidate. The
// skip keyword is case-insensitive so every decision source accepts it
// the same way.
func (d Decision) IsSkip() bool {
	return d.Choice == "" || strings.EqualFold(d.Choice, Skip)
}

// Provider supplies a decision for one conflict. Implementations may
// block on interactive input; ctx bounds the wait.
type Provider interface {
	Decide(ctx context.Context, c match.Conflict) (Decision, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, c match.Conflict) (Decision, error)

// Decide calls f.
func (f ProviderFunc) Decide(ctx context.Context, c match.Conflict) (Decision, error) {
	return f(ctx, c)
}

// Outcome records how the conflicts were settled.
type Outcome struct {
	Chosen  []*table.Table // inventory row subsets, one per accepted decision
	Skipped []string       // conflict titles resolved as skip or left undecided
}

// Conflicts consults provider for each conflict in order and collects
// the inventory rows of accepted candidates. A chosen title must be one
// of the offered candidates; anything else is rejected as an error.
// Decisions are independent: settling one conflict never changes
// another's candidate set.
func Conflicts(ctx context.Context, conflicts []match.Conflict, inventory *table.Table, provider Provider) (*Outcome, error) {
	out := &Outcome{}

	for _, c := range conflicts {
		decision, err := provider.Decide(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", c.Title, err)
		}
		if decision.IsSkip() {
			out.Skipped = append(out.Skipped, c.Title)
			continue
		}
		if !c.Offers(decision.Choice) {
			return nil, fmt.Errorf("resolve %q: %q is not one of the offered candidates", c.Title, decision.Choice)
		}
		out.Chosen = append(out.Chosen, inventory.RowsWhere(match.TitleColumn, decision.Choice))
	}

	return out, nil
}

// StaticProvider resolves conflicts from a fixed title-to-choice map.
// Titles absent from the map are skipped; the caller learns about them
// through Outcome.Skipped rather than silently losing rows.
type StaticProvider map[string]string

// Decide returns the mapped choice for the conflict title.
func (p StaticProvider) Decide(_ context.Context, c match.Conflict) (Decision, error) {
	return Decision{Choice: p[c.Title]}, nil
}

// SkipAll declines every conflict.
var SkipAll = ProviderFunc(func(context.Context, match.Conflict) (Decision, error) {
	return Decision{Choice: Skip}, nil
})
