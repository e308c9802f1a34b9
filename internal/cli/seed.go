package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"zamanyonet-admin/internal/platform"
	"zamanyonet-admin/internal/resource"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert modules and integrations from a catalog file",
	Long: `Read a YAML catalog and upsert its modules and integrations by key.
Writes go through the audited gateways and are recorded as system actions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(seedFile)
		if err != nil {
			return err
		}
		defer f.Close()
		cat, err := platform.LoadCatalog(f)
		if err != nil {
			return err
		}

		deps, err := openDeps(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		modules, err := resource.NewGateway(deps.Backend(), platform.Modules())
		if err != nil {
			return err
		}
		integrations, err := resource.NewGateway(deps.Backend(), platform.Integrations())
		if err != nil {
			return err
		}

		res, err := platform.Seed(cmd.Context(), modules, integrations, cat)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded catalog: %d created, %d updated.\n", res.Created, res.Updated)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "catalog.yaml", "catalog file path")
}
