package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/divbloxjs/dx-db-sync/internal/gateway"
)

var rootCmd = &cobra.Command{
	Use:   "dbsync",
	Short: "Reconcile a live database schema against a declarative data model",
	Long: `dbsync introspects the modules of a MySQL/MariaDB database and converges
their InnoDB schema onto a declarative data model, emitting and executing
the ALTER/CREATE/DROP statements needed to get there.

Example:
  dbsync sync --data-model ./data-model.json --db-config ./database.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and runs it. It is
// called once by main.main.
func Execute() {
	rootCmd.AddCommand(newSyncCommand())
	err := rootCmd.Execute()
	if err != nil {
		if gateway.IsAccessError(err) {
			fmt.Fprintln(os.Stderr, "hint: check the configured user/password and that it has privileges on every mapped schema")
		}
		os.Exit(exitCodeFor(err))
	}
}
