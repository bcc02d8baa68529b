package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/tieout/cmd/tieout/app"
)

var pullFlags struct {
	sources []string
	start   string
	end     string
	output  string
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull transactions from the configured sources",
	Long: `Pull fetches the full transaction collections from each source without
reconciling them. Useful for verifying connectivity and inspecting what
each system reports for a date window.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		chain, err := app.ParseChain(pullFlags.sources)
		if err != nil {
			return err
		}
		filter, err := parseFilter(pullFlags.start, pullFlags.end)
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

		pulls := client.PullAll(cmd.Context(), filter)
		failures := 0
		for _, p := range pulls {
			if p.Failed() {
				failures++
				fmt.Printf("%-12s FAILED  %v\n", p.Source, p.Err)
				continue
			}
			fmt.Printf("%-12s %d records\n", p.Source, len(p.Records))
		}

		if pullFlags.output != "" {
			bySource := make(map[string]any, len(pulls))
			for _, p := range pulls {
				if !p.Failed() {
					bySource[p.Source.String()] = p.Records
				}
			}
			if err := writeJSON(pullFlags.output, bySource); err != nil {
				return err
			}
			fmt.Println("Wrote", pullFlags.output)
		}

		if failures > 0 {
			return fmt.Errorf("%d source(s) failed", failures)
		}
		return nil
	},
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func init() {
	pullCmd.Flags().StringSliceVar(&pullFlags.sources, "sources", nil, "sources to pull (default all)")
	pullCmd.Flags().StringVar(&pullFlags.start, "start", "", "start date (YYYY-MM-DD)")
	pullCmd.Flags().StringVar(&pullFlags.end, "end", "", "end date, inclusive (YYYY-MM-DD)")
	pullCmd.Flags().StringVarP(&pullFlags.output, "output", "o", "", "write pulled records to a JSON file")
	rootCmd.AddCommand(pullCmd)
}
