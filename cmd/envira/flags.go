package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/felixgeelhaar/envira/internal/domain/config"
)

// runFlags are the per-command run settings. Each command registers the
// subset that applies to it.
type runFlags struct {
	workers     int
	timeout     time.Duration
	attempts    int
	only        []string
	skip        []string
	force       []string
	noVerify    bool
	metricsFile string
	cacheDir    string
}

var run runFlags

func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&run.only, "only", nil, "run only these steps and their dependencies")
	cmd.Flags().StringSliceVar(&run.skip, "skip", nil, "treat these steps as not applicable")
	cmd.Flags().StringSliceVar(&run.force, "force", nil, "execute these steps even when already satisfied")
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&run.workers, "workers", "w", 0, "steps executing at once (default 4)")
	cmd.Flags().DurationVar(&run.timeout, "timeout", 0, "timeout per step attempt (default 15m)")
	cmd.Flags().IntVar(&run.attempts, "attempts", 0, "attempts for transient failures (default 3)")
	cmd.Flags().StringVar(&run.cacheDir, "cache-dir", "", "download cache (default ~/.cache/envira)")
}

func addMetricsFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&run.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
}

// apply copies the flags the user set onto cfg.
func (f *runFlags) apply(flags *pflag.FlagSet, cfg *config.RunConfig) {
	changed := flags.Changed
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("timeout") {
		cfg.StepTimeout = f.timeout
	}
	if changed("attempts") {
		cfg.Attempts = f.attempts
	}
	if changed("only") {
		cfg.Only = f.only
	}
	if changed("skip") {
		cfg.Skip = f.skip
	}
	if changed("force") {
		cfg.Force = f.force
	}
	if changed("no-verify") {
		cfg.Verify = !f.noVerify
	}
	if changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
	if changed("cache-dir") {
		cfg.CacheDir = f.cacheDir
	}
}
