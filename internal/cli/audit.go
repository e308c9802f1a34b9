package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"zamanyonet-admin/internal/archive"
)

var (
	archiveBefore string
	archivePrune  bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit trail maintenance",
}

var auditArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Export old audit entries to S3, optionally pruning them",
	Long: `Export every audit entry created before --before as JSON Lines to the
configured S3 bucket and record an EXPORT entry. With --prune the exported
entries are deleted afterwards, except those the outbox relay has not
published yet. This is the only way audit rows are removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		before, err := time.Parse(time.RFC3339, archiveBefore)
		if err != nil {
			return fmt.Errorf("--before must be an RFC 3339 timestamp: %w", err)
		}
		if err := cfg.ValidateArchive(); err != nil {
			return err
		}

		deps, err := openDeps(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		up, err := archive.NewS3Uploader(cmd.Context(), cfg.Archive)
		if err != nil {
			return err
		}
		res, err := archive.New(deps.Audit, up, deps.AuditStore, cfg.Archive.Prefix, log).
			Run(cmd.Context(), before, archivePrune)
		if err != nil {
			return err
		}
		if res.Count == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to archive.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Archived %d entries to %s", res.Count, res.Location)
		if archivePrune {
			fmt.Fprintf(cmd.OutOrStdout(), ", pruned %d", res.Pruned)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	auditArchiveCmd.Flags().StringVar(&archiveBefore, "before", "", "export entries created before this RFC 3339 time")
	auditArchiveCmd.Flags().BoolVar(&archivePrune, "prune", false, "delete exported entries")
	_ = auditArchiveCmd.MarkFlagRequired("before")
	auditCmd.AddCommand(auditArchiveCmd)
}
