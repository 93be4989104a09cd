package main

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/envira/internal/app"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the catalog on this host",
	Long: `Install walks the catalog in dependency order:

1. Steps that do not apply to this host or mode are skipped
2. Steps whose end state already holds are skipped
3. Everything else is executed, independent steps in parallel
4. A failed step blocks only the steps that depend on it

The verification pass runs afterwards unless --no-verify is given.
Interrupting the run stops new steps; running ones get a grace period.`,
	Example: `  envira install --mode user
  sudo envira install --mode system --only docker,lazydocker
  envira install --mode user --force neovim --metrics-file /var/lib/node_exporter/envira.prom`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)

	addEngineFlags(installCmd)
	addSelectionFlags(installCmd)
	addMetricsFlag(installCmd)
	installCmd.Flags().BoolVar(&run.noVerify, "no-verify", false, "skip the verification pass")
}

func runInstall(cmd *cobra.Command, _ []string) error {
	envira, cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	res, err := envira.Install(cmd.Context(), cfg)
	if res == nil {
		return err
	}
	exitCode = app.ExitCode(res, err)
	return nil
}
