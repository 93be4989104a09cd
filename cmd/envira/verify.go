package main

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/envira/internal/app"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the installed environment",
	Long: `Verify re-probes the host for the commands, files, directories and
configuration markers an install should have produced. It never changes
the host. Checks that do not apply to the host or mode are skipped.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	addMetricsFlag(verifyCmd)
}

func runVerify(cmd *cobra.Command, _ []string) error {
	envira, cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	res, err := envira.Verify(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	exitCode = app.ExitCode(res, nil)
	return nil
}
