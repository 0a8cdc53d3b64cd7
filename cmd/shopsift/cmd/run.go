package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shopsift/shopsift/internal/core"
	"github.com/shopsift/shopsift/internal/match"
	"github.com/shopsift/shopsift/internal/resolve"
	"github.com/shopsift/shopsift/internal/table"
)

var runFlags struct {
	product       []string
	inventory     []string
	selected      string
	threshold     int
	outDir        string
	resolutions   []string
	skipConflicts bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile exports in one pass",
	Long: `Run matches the selected-products list against inventory exports and
writes filtered_inventory.csv and filtered_product.csv to the output
directory.

Ambiguous titles are resolved interactively on the terminal by default.
Use --resolve "title=choice" to decide ahead of time, or
--skip-conflicts to drop every ambiguous title.`,
	Example: `  shopsift run -p products.csv -i inventory.csv -s selected.csv
  shopsift run -p p1.csv -p p2.csv -i inv.xlsx -s selected.csv -t 90 -o out/
  shopsift run -p products.csv -i inventory.csv -s selected.csv \
      --resolve "Blue Hat=Blue Hatt" --resolve "Red Mug=skip"`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArrayVarP(&runFlags.product, "product", "p", nil, "product export file (repeatable, same columns)")
	runCmd.Flags().StringArrayVarP(&runFlags.inventory, "inventory", "i", nil, "inventory export file (repeatable, same columns)")
	runCmd.Flags().StringVarP(&runFlags.selected, "selected", "s", "", "selected-products file with a Title column")
	runCmd.Flags().IntVarP(&runFlags.threshold, "threshold", "t", match.DefaultThreshold, "similarity threshold 0-100")
	runCmd.Flags().StringVarP(&runFlags.outDir, "out-dir", "o", ".", "directory for output CSVs")
	runCmd.Flags().StringArrayVar(&runFlags.resolutions, "resolve", nil, `conflict decision as "title=choice" (choice may be "skip")`)
	runCmd.Flags().BoolVar(&runFlags.skipConflicts, "skip-conflicts", false, "skip every ambiguous title without prompting")

	_ = runCmd.MarkFlagRequired("product")
	_ = runCmd.MarkFlagRequired("inventory")
	_ = runCmd.MarkFlagRequired("selected")
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	threshold := runFlags.threshold
	if !cmd.Flags().Changed("threshold") {
		threshold = cfg.Match.Threshold
	}
	if err := core.ValidThreshold(threshold); err != nil {
		return err
	}

	in, err := loadInputs()
	if err != nil {
		return err
	}

	provider, err := conflictProvider()
	if err != nil {
		return err
	}

	pipe := &core.Pipeline{Threshold: threshold}
	result, err := pipe.Run(cmd.Context(), in, provider)
	if err != nil {
		return fmt.Errorf("%s", core.FormatUserError(err))
	}

	invPath := filepath.Join(runFlags.outDir, "filtered_inventory.csv")
	if err := result.FilteredInventory.WriteCSVFile(invPath); err != nil {
		return err
	}

	prodPath := ""
	if result.FilteredProduct != nil {
		prodPath = filepath.Join(runFlags.outDir, "filtered_product.csv")
		if err := result.FilteredProduct.WriteCSVFile(prodPath); err != nil {
			return err
		}
	}

	printSummary(cmd, result, threshold, invPath, prodPath)
	return nil
}

// loadInputs reads and decodes the three file roles.
func loadInputs() (core.Inputs, error) {
	var in core.Inputs

	for _, path := range runFlags.product {
		t, err := loadTable(path)
		if err != nil {
			return in, err
		}
		in.Product = append(in.Product, t)
	}
	for _, path := range runFlags.inventory {
		t, err := loadTable(path)
		if err != nil {
			return in, err
		}
		in.Inventory = append(in.Inventory, t)
	}

	selected, err := loadTable(runFlags.selected)
	if err != nil {
		return in, err
	}
	in.Selected = selected
	return in, nil
}

func loadTable(path string) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return table.Decode(filepath.Base(path), data)
}

// conflictProvider picks how ambiguous titles get settled: explicit
// --resolve pairs, --skip-conflicts, or an interactive prompt.
func conflictProvider() (resolve.Provider, error) {
	if runFlags.skipConflicts {
		return resolve.SkipAll, nil
	}

	if len(runFlags.resolutions) > 0 {
		decisions := make(map[string]string, len(runFlags.resolutions))
		for _, pair := range runFlags.resolutions {
			title, choice, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, fmt.Errorf(`--resolve %q is not "title=choice"`, pair)
			}
			decisions[title] = choice
		}
		return resolve.StaticProvider(decisions), nil
	}

	return resolve.NewPromptProvider(os.Stdin, os.Stdout), nil
}

// printSummary reports what the run did, itemizing unmatched and
// skipped titles so the operator can act on each one.
func printSummary(cmd *cobra.Command, result *core.RunResult, threshold int, invPath, prodPath string) {
	sum := result.Summary
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "\nMatched %d of %d selected titles", sum.UniqueMatches+sum.ResolvedConflicts, sum.SelectedTitles)
	fmt.Fprintf(out, " (threshold %d, %dms)\n", threshold, sum.DurationMs)

	if len(sum.Unmatched) > 0 {
		fmt.Fprintf(out, "\nNo inventory match for %d title(s):\n", len(sum.Unmatched))
		for _, title := range sum.Unmatched {
			fmt.Fprintf(out, "  - %s\n", title)
		}
	}
	if len(sum.SkippedConflicts) > 0 {
		fmt.Fprintf(out, "\nSkipped %d ambiguous title(s):\n", len(sum.SkippedConflicts))
		for _, title := range sum.SkippedConflicts {
			fmt.Fprintf(out, "  - %s\n", title)
		}
	}
	if len(sum.SpecialCharTitles) > 0 {
		fmt.Fprintf(out, "\nWarning: %d title(s) contain special characters that can weaken matching:\n", len(sum.SpecialCharTitles))
		for _, title := range sum.SpecialCharTitles {
			fmt.Fprintf(out, "  - %s\n", title)
		}
	}

	fmt.Fprintf(out, "\nWrote %s (%d rows)\n", invPath, sum.FilteredInventoryRows)
	if prodPath != "" {
		fmt.Fprintf(out, "Wrote %s (%d rows)\n", prodPath, sum.FilteredProductRows)
	} else {
		fmt.Fprintf(out, "Product file skipped: %s\n", sum.SkipReason)
	}
}
