/*
main.go - payoutd entry point

PURPOSE:
  Command tree for the coach payout engine.

COMMANDS:
  serve                    Start the HTTP API server
  migrate up|down|version  Manage the SQLite schema
  history                  Print a coach's monthly history as JSON
  seed                     Load a demo scenario into the database

CONFIGURATION:
  --config points at a YAML file (default config.yaml). A .env file next to
  the working directory and PAYOUT_* variables override file values.

EXAMPLES:
  payoutd serve --config ./config.yaml
  PAYOUT_DATABASE_PATH=:memory: payoutd serve
  payoutd history --coach coach-001 --months 6 --ref 2024-03
  payoutd seed --scenario partially-paid

SEE ALSO:
  - config/read.go: Configuration sources and defaults
  - api/server.go: Router configuration
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "payoutd",
		Short: "Coach reward calculation and payout reconciliation.",
		Long: `payoutd computes monthly coach rewards from completed lessons,
settles them into net payable amounts and reconciles them against the
recorded payout ledger.`,
		SilenceUsage: true,
	}

	// Global config flag, available for all commands.
	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newHistoryCommand())
	root.AddCommand(newSeedCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
