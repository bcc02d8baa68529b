package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/tieout/cmd/tieout/app"
	"github.com/agentstation/tieout/pkg/record"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored credentials for OAuth sources",
}

var authLoginCmd = &cobra.Command{
	Use:   "login <source>",
	Short: "Authorize a source interactively in the browser",
	Long: `Login opens the source's authorization page in the browser, captures
the redirect on a loopback listener, and stores the resulting tokens.
Only OAuth sources (salesforce, quickbooks) need interactive login;
avalara and shopify use static credentials from the environment.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New()
		if err != nil {
			return err
		}
		manager, ok := a.Manager(record.SourceID(args[0]))
		if !ok {
			return fmt.Errorf("source %q does not use interactive login", args[0])
		}
		if err := manager.Authenticate(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Authorized %s.\n", args[0])
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout <source>",
	Short: "Remove stored credentials for a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := app.New()
		if err != nil {
			return err
		}
		manager, ok := a.Manager(record.SourceID(args[0]))
		if !ok {
			return fmt.Errorf("source %q does not store credentials", args[0])
		}
		if err := manager.Clear(); err != nil {
			return err
		}
		fmt.Printf("Cleared credentials for %s.\n", args[0])
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show token state for the OAuth sources",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := app.New()
		if err != nil {
			return err
		}
		for _, id := range []record.SourceID{record.SourceSalesforce, record.SourceQuickBooks} {
			manager, _ := a.Manager(id)
			state := "not authenticated"
			if manager.Valid() {
				state = "token valid"
			}
			fmt.Printf("%-12s %s\n", id, state)
		}
		return nil
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
