package main

import (
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the steps and checks",
	Long: `Catalog validates and lists the catalog: steps grouped by install
method with their applicability and dependencies, then the verification
checks. Use --catalog to inspect a catalog file.`,
	Args: cobra.NoArgs,
	RunE: runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	envira, cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	_, err = envira.Catalog(cfg.Catalog)
	return err
}
