package resolve

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shopsift/shopsift/internal/match"
	"github.com/shopsift/shopsift/internal/table"
)

func inventoryFixture() *table.Table {
	t := table.New("inventory", []string{"Handle", "Title"})
	t.Rows = [][]string{
		{"h1", "Blue Hat"},
		{"h2", "Blue Hatt"},
		{"h3", "Blue Hat"},
	}
	return t
}

func conflictFixture() match.Conflict {
	return match.Conflict{
		Title: "Blue Hat",
		Candidates: []match.Candidate{
			{Title: "Blue Hat", Score: 100},
			{Title: "Blue Hatt", Score: 94},
		},
	}
}

// ============================================================================
// Conflicts Tests
// ============================================================================

func TestConflictsChoice(t *testing.T) {
	inv := inventoryFixture()
	provider := StaticProvider{"Blue Hat": "Blue Hatt"}

	out, err := Conflicts(context.Background(), []match.Conflict{conflictFixture()}, inv, provider)
	if err != nil {
		t.Fatalf("Conflicts returned error: %v", err)
	}

	if len(out.Chosen) != 1 {
		t.Fatalf("expected 1 chosen table, got %d", len(out.Chosen))
	}
	if len(out.Chosen[0].Rows) != 1 || out.Chosen[0].Rows[0][0] != "h2" {
		t.Errorf("wrong rows chosen: %v", out.Chosen[0].Rows)
	}
	if len(out.Skipped) != 0 {
		t.Errorf("unexpected skips: %v", out.Skipped)
	}
}

func TestConflictsChoiceCollectsAllRows(t *testing.T) {
	inv := inventoryFixture()
	provider := StaticProvider{"Blue Hat": "Blue Hat"}

	out, err := Conflicts(context.Background(), []match.Conflict{conflictFixture()}, inv, provider)
	if err != nil {
		t.Fatalf("Conflicts returned error: %v", err)
	}
	if len(out.Chosen[0].Rows) != 2 {
		t.Errorf("expected both Blue Hat rows, got %d", len(out.Chosen[0].Rows))
	}
}

func TestConflictsSkip(t *testing.T) {
	inv := inventoryFixture()

	out, err := Conflicts(context.Background(), []match.Conflict{conflictFixture()}, inv, SkipAll)
	if err != nil {
		t.Fatalf("Conflicts returned error: %v", err)
	}
	if len(out.Chosen) != 0 {
		t.Errorf("skip contributed rows: %v", out.Chosen)
	}
	if len(out.Skipped) != 1 || out.Skipped[0] != "Blue Hat" {
		t.Errorf("skipped titles = %v, want [Blue Hat]", out.Skipped)
	}
}

func TestConflictsSkipCaseInsensitive(t *testing.T) {
	// "Skip" from a static map must decline like "skip", not be
	// rejected as an un-offered candidate.
	inv := inventoryFixture()

	for _, choice := range []string{"Skip", "SKIP"} {
		out, err := Conflicts(context.Background(), []match.Conflict{conflictFixture()}, inv,
			StaticProvider{"Blue Hat": choice})
		if err != nil {
			t.Fatalf("choice %q: %v", choice, err)
		}
		if len(out.Skipped) != 1 || len(out.Chosen) != 0 {
			t.Errorf("choice %q not treated as skip: %+v", choice, out)
		}
	}
}

func TestConflictsUndecidedIsSkipped(t *testing.T) {
	// A StaticProvider without an entry for the title skips it,
	// surfacing the title rather than silently losing rows.
	inv := inventoryFixture()

	out, err := Conflicts(context.Background(), []match.Conflict{conflictFixture()}, inv, StaticProvider{})
	if err != nil {
		t.Fatalf("Conflicts returned error: %v", err)
	}
	if len(out.Skipped) != 1 {
		t.Errorf("undecided conflict not surfaced: %+v", out)
	}
}

func TestConflictsRejectsUnofferedChoice(t *testing.T) {
	inv := inventoryFixture()
	provider := StaticProvider{"Blue Hat": "Green Socks"}

	_, err := Conflicts(context.Background(), []match.Conflict{conflictFixture()}, inv, provider)
	if err == nil {
		t.Fatal("expected error for unoffered choice")
	}
	if !strings.Contains(err.Error(), "not one of the offered candidates") {
		t.Errorf("unexpected error: %v", err)
	}
}

// ============================================================================
// PromptProvider Tests
// ============================================================================

func TestPromptProviderNumberedChoice(t *testing.T) {
	var out bytes.Buffer
	p := NewPromptProvider(strings.NewReader("2\n"), &out)

	d, err := p.Decide(context.Background(), conflictFixture())
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if d.Choice != "Blue Hatt" {
		t.Errorf("choice = %q, want Blue Hatt", d.Choice)
	}
	if !strings.Contains(out.String(), "[1] Blue Hat (score 100)") {
		t.Errorf("candidates not listed:\n%s", out.String())
	}
}

func TestPromptProviderSkip(t *testing.T) {
	for _, input := range []string{"0\n", "skip\n", "SKIP\n"} {
		p := NewPromptProvider(strings.NewReader(input), &bytes.Buffer{})
		d, err := p.Decide(context.Background(), conflictFixture())
		if err != nil {
			t.Fatalf("input %q: %v", input, err)
		}
		if !d.IsSkip() {
			t.Errorf("input %q: expected skip, got %q", input, d.Choice)
		}
	}
}

func TestPromptProviderRepromptsOnInvalid(t *testing.T) {
	var out bytes.Buffer
	p := NewPromptProvider(strings.NewReader("nope\n9\n1\n"), &out)

	d, err := p.Decide(context.Background(), conflictFixture())
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if d.Choice != "Blue Hat" {
		t.Errorf("choice = %q, want Blue Hat", d.Choice)
	}
	if !strings.Contains(out.String(), "enter a number between 0 and 2") {
		t.Errorf("no reprompt message:\n%s", out.String())
	}
}

func TestPromptProviderEOFSkips(t *testing.T) {
	p := NewPromptProvider(strings.NewReader(""), &bytes.Buffer{})

	d, err := p.Decide(context.Background(), conflictFixture())
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if !d.IsSkip() {
		t.Errorf("EOF should skip, got %q", d.Choice)
	}
}

func TestPromptProviderHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPromptProvider(strings.NewReader("1\n"), &bytes.Buffer{})
	if _, err := p.Decide(ctx, conflictFixture()); err == nil {
		t.Error("expected context error")
	}
}
