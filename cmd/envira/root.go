package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/envira/internal/adapters/logging"
	"github.com/felixgeelhaar/envira/internal/app"
	"github.com/felixgeelhaar/envira/internal/domain/config"
	"github.com/felixgeelhaar/envira/internal/ports"
	"github.com/felixgeelhaar/envira/internal/tui/ui"
)

var (
	// Global flags
	cfgFile     string
	verbose     bool
	logFormat   string
	mode        string
	catalogPath string
)

var rootCmd = &cobra.Command{
	Use:   "envira",
	Short: "Provision a Linux developer environment",
	Long: `Envira installs and configures a fixed catalog of developer tools on
Debian, Fedora and Arch family hosts, then verifies the result.

Every run is explicit about its privilege mode:
  system  install OS-wide, elevating with sudo where needed
  user    install under the home directory only

Exit codes: 0 success, 1 installation failure, 2 verification failure,
3 configuration error.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// exitCode is set by commands that complete with a result.
var exitCode int

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// newEnvira builds the application for a command.
var newEnvira = func(out io.Writer, logger ports.Logger) *app.Envira {
	return app.New(out, app.WithLogger(logger))
}

// Execute runs the root command and returns the process exit code.
// SIGINT and SIGTERM cancel the run.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, os.Args[1:])
}

func execute(ctx context.Context, args []string) int {
	exitCode = app.ExitOK
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.NewPrinter(stderr).PrintError(err)
		return app.ExitCode(nil, err)
	}
	return exitCode
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./envira.yaml when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and every step in listings")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&mode, "mode", "m", "", "privilege mode (system, user)")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "catalog file (default: built-in catalog)")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return config.NewUserError(config.ErrCodeValidationFailed, err.Error()).
			WithSuggestion("Run 'envira --help' for usage.")
	})

	registerFlagCompletions()

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and applies the flags the user set.
// The result is validated by the application.
func loadConfig(cmd *cobra.Command) (config.RunConfig, error) {
	path, required := cfgFile, true
	if path == "" {
		path, required = config.DefaultFileName, false
	}
	cfg, err := config.NewLoader().Load(path, required)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Mode = mode
	}
	if flags.Changed("catalog") {
		cfg.Catalog = catalogPath
	}
	if flags.Changed("verbose") {
		cfg.Log.Verbose = verbose
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	run.apply(flags, &cfg)
	return cfg, nil
}

// setup loads the configuration and builds the application with a logger
// matching it.
func setup(cmd *cobra.Command) (*app.Envira, config.RunConfig, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		format = logging.FormatText
	}
	logger := logging.New(stderr, format, cfg.Log.Verbose)
	return newEnvira(stdout, logger), cfg, nil
}

// registerFlagCompletions sets up custom completions for global flags.
func registerFlagCompletions() {
	_ = rootCmd.RegisterFlagCompletionFunc("config", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
	})
	_ = rootCmd.RegisterFlagCompletionFunc("catalog", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
	})
	_ = rootCmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"system\tInstall OS-wide with elevated privileges",
			"user\tInstall under the home directory",
		}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
}
