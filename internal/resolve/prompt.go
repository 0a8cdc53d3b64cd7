package resolve

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopsift/shopsift/internal/match"
)

// PromptProvider resolves conflicts interactively: it prints the
// candidate list plus a skip option and reads a numbered choice.
// Invalid input re-prompts rather than failing the run.
type PromptProvider struct {
	In  io.Reader
	Out io.Writer

	scanner *bufio.Scanner
}

// NewPromptProvider creates an interactive provider reading from in and
// writing prompts to out.
func NewPromptProvider(in io.Reader, out io.Writer) *PromptProvider {
	return &PromptProvider{In: in, Out: out, scanner: bufio.NewScanner(in)}
}

// Decide presents the conflict and blocks until a valid choice is read.
func (p *PromptProvider) Decide(ctx context.Context, c match.Conflict) (Decision, error) {
	fmt.Fprintf(p.Out, "\nMultiple matches found for %q. Choose one or skip:\n", c.Title)
	for i, cand := range c.Candidates {
		fmt.Fprintf(p.Out, "  [%d] %s (score %d)\n", i+1, cand.Title, cand.Score)
	}
	fmt.Fprintf(p.Out, "  [0] Skip\n")

	for {
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}
		fmt.Fprintf(p.Out, "choice> ")

		if !p.scanner.Scan() {
			if err := p.scanner.Err(); err != nil {
				return Decision{}, err
			}
			// Input closed: treat as skip so a piped run can finish.
			return Decision{Choice: Skip}, nil
		}

		line := strings.TrimSpace(p.scanner.Text())
		if strings.EqualFold(line, Skip) || line == "0" {
			return Decision{Choice: Skip}, nil
		}
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(c.Candidates) {
			return Decision{Choice: c.Candidates[n-1].Title}, nil
		}
		fmt.Fprintf(p.Out, "enter a number between 0 and %d\n", len(c.Candidates))
	}
}
