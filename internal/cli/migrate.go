package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"zamanyonet-admin/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Apply every embedded migration that has not been applied yet.
Each migration runs in its own transaction and is recorded in
schema_migrations with its checksum. Editing an applied migration is an error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := openDeps(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := deps.RequireDB(); err != nil {
			return err
		}

		applied, err := migrate.Up(cmd.Context(), deps.DB, log)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations.")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "  ✓ %s\n", name)
		}
		return nil
	},
}
