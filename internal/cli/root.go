package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"zamanyonet-admin/internal/app"
	"zamanyonet-admin/internal/config"
	"zamanyonet-admin/pkg/logger"
)

var (
	envFile string
	version = "dev"

	cfg config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "zyctl",
	Short: "Operations tool for the ZamanYonet admin API",
	Long: `zyctl runs the out-of-band jobs of the admin API: schema migrations,
catalog seeding, the audit outbox relay and audit archiving.

Configuration comes from the same environment variables as the API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log = logger.New(cfg.App.Env).With("cmd", cmd.CommandPath())
		slog.SetDefault(log)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "zyctl %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the environment is read")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(outboxCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(versionCmd)
}

func SetVersion(v string) {
	version = v
}

func Execute() error {
	return rootCmd.Execute()
}

func Root() *cobra.Command {
	return rootCmd
}

func openDeps(cmd *cobra.Command) (*app.Deps, error) {
	return app.Open(cmd.Context(), cfg, log)
}
