package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"zamanyonet-admin/internal/audit"
)

var relayOnce bool

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Audit outbox operations",
}

var outboxRelayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Publish pending audit entries to the Redis stream",
	Long: `Publish audit outbox records to the configured Redis stream in order.
Only one relay publishes at a time; others stand by until the lease frees up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := openDeps(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		relay := deps.Relay()
		if relay == nil {
			return errors.New("outbox relay needs Redis (STORAGE_MODE=postgres)")
		}

		if relayOnce {
			n, err := relay.RunOnce(cmd.Context())
			if errors.Is(err, audit.ErrLeaseHeld) {
				fmt.Fprintln(cmd.OutOrStdout(), "Another relay holds the lease.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %d record(s).\n", n)
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		log.Info("outbox relay started", "stream", cfg.Outbox.Stream)
		return relay.Run(ctx)
	},
}

func init() {
	outboxRelayCmd.Flags().BoolVar(&relayOnce, "once", false, "publish one batch and exit")
	outboxCmd.AddCommand(outboxRelayCmd)
}
