package match

import (
	"fmt"
	"sort"

	"github.com/shopsift/shopsift/internal/table"
)

// DefaultThreshold is the minimum similarity ratio for a candidate to
// count as a match when no threshold is configured.
const DefaultThreshold = 95

// TitleColumn is the free-text join key used for selection matching.
const TitleColumn = "Title"

// Candidate is one inventory title scoring at or above the threshold.
type Candidate struct {
	Title string `json:"title"`
	Score int    `json:"score"`
}

// Conflict is a selected title with two or more candidates, requiring
// external disambiguation. Candidates are ordered best score first;
// equal scores keep inventory order.
type Conflict struct {
	Title      string      `json:"title"`
	Candidates []Candidate `json:"candidates"`
}

// CandidateTitles returns just the candidate title strings, in rank order.
func (c Conflict) CandidateTitles() []string {
	titles := make([]string, len(c.Candidates))
	for i, cand := range c.Candidates {
		titles[i] = cand.Title
	}
	return titles
}

// Offers reports whether title is one of the conflict's candidates.
func (c Conflict) Offers(title string) bool {
	for _, cand := range c.Candidates {
		if cand.Title == title {
			return true
		}
	}
	return false
}

// UniqueMatch is a selected title that resolved to exactly one inventory
// title; Rows holds every inventory row carrying that title.
type UniqueMatch struct {
	Selected  string
	Inventory string
	Rows      *table.Table
}

// Result is the classification of one matching pass. Every selected
// title lands in exactly one of the three buckets.
type Result struct {
	Unique    []UniqueMatch
	Unmatched []string
	Conflicts []Conflict
}

// ErrNoTitleColumn signals that the inventory table cannot be matched
// against. This is a precondition violation, not an empty result.
type ErrNoTitleColumn struct {
	Table string
}

func (e *ErrNoTitleColumn) Error() string {
	return fmt.Sprintf("table %q has no %q column; matching requires it", e.Table, TitleColumn)
}

// Titles matches each selected title against the distinct inventory
// titles and classifies it as unmatched (zero candidates at or above
// threshold), unique (exactly one), or conflict (two or more). Titles
// are processed independently and in order; repeated inputs repeat
// identical work and identical results.
func Titles(selected []string, inventory *table.Table, threshold int) (*Result, error) {
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("threshold %d out of range 0-100", threshold)
	}
	if !inventory.HasColumn(TitleColumn) {
		return nil, &ErrNoTitleColumn{Table: inventory.Name}
	}

	inventoryTitles := inventory.DistinctValues(TitleColumn)
	result := &Result{}

	for _, title := range selected {
		candidates := extract(title, inventoryTitles, threshold)
		switch len(candidates) {
		case 0:
			result.Unmatched = append(result.Unmatched, title)
		case 1:
			result.Unique = append(result.Unique, UniqueMatch{
				Selected:  title,
				Inventory: candidates[0].Title,
				Rows:      inventory.RowsWhere(TitleColumn, candidates[0].Title),
			})
		default:
			result.Conflicts = append(result.Conflicts, Conflict{
				Title:      title,
				Candidates: candidates,
			})
		}
	}

	return result, nil
}

// extract scores target against every reference title and returns those
// at or above cutoff, ranked descending by score. The sort is stable so
// equal scores keep the reference order.
func extract(target string, references []string, cutoff int) []Candidate {
	var out []Candidate
	for _, ref := range references {
		if score := Ratio(target, ref); score >= cutoff {
			out = append(out, Candidate{Title: ref, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
