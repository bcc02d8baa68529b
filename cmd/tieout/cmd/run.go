package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/tieout/cmd/tieout/app"
	"github.com/agentstation/tieout/pkg/reconcile"
	"github.com/agentstation/tieout/pkg/results"
)

var runFlags struct {
	sources []string
	start   string
	end     string
	output  string
	all     bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Pull every source and reconcile adjacent pairs",
	Long: `Run performs a full tie-out: pull each source, align records on their
order references, and report matches, amount mismatches, and records
missing on either side. Sources are compared pairwise in chain order.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		chain, err := app.ParseChain(runFlags.sources)
		if err != nil {
			return err
		}
		filter, err := parseFilter(runFlags.start, runFlags.end)
		if err != nil {
			return err
		}

		a, err := app.New()
		if err != nil {
			return err
		}
		client, err := a.Client(chain)
		if err != nil {
			return err
		}

		result, err := client.TieOut(cmd.Context(), filter)
		if err != nil {
			return err
		}

		printResult(result)

		if runFlags.output != "" {
			sheets := make(map[string]any, len(result.Sheets()))
			for _, s := range result.Sheets() {
				if s.TieRows != nil {
					sheets[s.Name] = s.TieRows
				} else {
					sheets[s.Name] = s.Records
				}
			}
			if err := writeJSON(runFlags.output, sheets); err != nil {
				return err
			}
			fmt.Println("Wrote", runFlags.output)
		}

		if result.Incomplete() {
			return fmt.Errorf("incomplete tie-out: %s", result.Reason())
		}
		return nil
	},
}

func printResult(result *results.Result) {
	for _, sheet := range result.Sheets() {
		if sheet.TieRows == nil {
			fmt.Printf("%s: %d records pulled\n", sheet.Name, len(sheet.Records))
			continue
		}

		var matched, mismatched, missing int
		for _, row := range sheet.TieRows {
			switch row.Status {
			case reconcile.StatusMatched:
				matched++
			case reconcile.StatusAmountMismatch:
				mismatched++
			default:
				missing++
			}
		}
		fmt.Printf("%s: %d keys (%d matched, %d mismatched, %d one-sided)\n",
			sheet.Name, len(sheet.TieRows), matched, mismatched, missing)

		if !runFlags.all {
			continue
		}
		for _, row := range sheet.TieRows {
			if row.Status == reconcile.StatusMatched {
				continue
			}
			fmt.Printf("  %-20s %-16s A=%s B=%s diff=%s\n",
				row.Key, row.Status, row.AmountA, row.AmountB, row.Difference)
		}
	}
}

func init() {
	runCmd.Flags().StringSliceVar(&runFlags.sources, "sources", nil, "source chain in comparison order (default all)")
	runCmd.Flags().StringVar(&runFlags.start, "start", "", "start date (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runFlags.end, "end", "", "end date, inclusive (YYYY-MM-DD)")
	runCmd.Flags().StringVarP(&runFlags.output, "output", "o", "", "write all sheets to a JSON file")
	runCmd.Flags().BoolVar(&runFlags.all, "all", false, "list every non-matching row")
	rootCmd.AddCommand(runCmd)
}
