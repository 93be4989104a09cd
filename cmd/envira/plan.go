package main

import (
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what install would do",
	Long: `Plan validates the catalog, probes the host and reports for every step
whether install would execute it, skip it as already satisfied, or skip it
as not applicable. Nothing is changed.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	addSelectionFlags(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	envira, cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	_, err = envira.Plan(cmd.Context(), cfg)
	return err
}
