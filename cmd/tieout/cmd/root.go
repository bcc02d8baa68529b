// Package cmd implements the tieout command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentstation/tieout/pkg/logging"
	"github.com/agentstation/tieout/pkg/record"
)

var (
	configFile string
	verbose    bool

	// Version information set by main.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tieout",
	Short: "Reconcile transactions across systems of record",
	Long: `Tieout pulls financial transactions from the configured remote systems
(Salesforce, QuickBooks, Avalara, Shopify), aligns them on their order
references, and reports where the systems agree and where they drift.`,
	PersistentPreRun: setupLogging,
}

// Execute adds all child commands to the root command and runs it.
func Execute(version, commit, date string) {
	Version = version
	Commit = commit
	Date = date
	rootCmd.Version = version

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Every invocation gets a run ID so log lines from one run correlate.
	ctx = logging.WithRunID(ctx, uuid.NewString())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $HOME/.tieout.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		panic(fmt.Sprintf("Failed to bind config flag: %v", err))
	}
}

func setupLogging(_ *cobra.Command, _ []string) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// parseFilter builds the date window from --start/--end flag values.
func parseFilter(start, end string) (record.Filter, error) {
	var filter record.Filter
	if start != "" {
		t, err := time.Parse("2006-01-02", start)
		if err != nil {
			return record.Filter{}, fmt.Errorf("invalid --start date %q: %w", start, err)
		}
		filter.Start = t
	}
	if end != "" {
		t, err := time.Parse("2006-01-02", end)
		if err != nil {
			return record.Filter{}, fmt.Errorf("invalid --end date %q: %w", end, err)
		}
		// The end date is inclusive.
		filter.End = t.Add(24*time.Hour - time.Nanosecond)
	}
	return filter, nil
}
