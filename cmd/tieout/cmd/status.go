package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/tieout/cmd/tieout/app"
	"github.com/agentstation/tieout/pkg/record"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Test the connection to every configured source",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := app.New()
		if err != nil {
			return err
		}

		failures := 0
		for _, id := range record.IDs() {
			client, err := a.SourceClient(id)
			if err != nil {
				failures++
				fmt.Printf("%-12s NOT CONFIGURED  %v\n", id, err)
				continue
			}
			st := client.TestConnection(cmd.Context())
			if !st.OK {
				failures++
				fmt.Printf("%-12s FAILED  %v\n", id, st.Err)
				continue
			}
			fmt.Printf("%-12s OK  %s\n", id, st.AccountInfo)
		}

		if failures > 0 {
			return fmt.Errorf("%d source(s) unavailable", failures)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
