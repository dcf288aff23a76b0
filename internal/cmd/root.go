// Package cmd implements the jobscope command-line interface.
package cmd

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/jobscope/internal/config"
	"github.com/3leaps/jobscope/internal/observability"
)

// versionInfo holds build metadata injected at link time via main.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for version output.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	cfgFile  string
	logLevel string
	quiet    bool

	// appConfig is loaded once in the root PersistentPreRunE and read
	// by every subcommand.
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "jobscope",
	Short: "Query job status across execution backends",
	Long: `jobscope tracks batch job lifecycles across heterogeneous backends:
local processes, cloud pipeline operations, and queue-based workers.

Job state is normalized into one record model with a canonical event
vocabulary, so the same filters and output formats work against every
backend.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Failed to load configuration", err)
		}
		appConfig = cfg

		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		if quiet {
			level = "error"
		}
		structured := cfg.Logging.Profile != "console"
		if err := observability.InitCLILogger(level, structured); err != nil {
			return exitError(foundry.ExitInvalidArgument, "Failed to initialize logging", err)
		}
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		observability.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.jobscope/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Log errors only")
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var coded *codedError
		if errors.As(err, &coded) {
			return coded.code
		}
		observability.CLILogger.Error("Command failed", zap.Error(err))
		return 1
	}
	return 0
}

// codedError carries a foundry exit code through cobra's error return.
type codedError struct {
	code int
	msg  string
	err  error
}

func (e *codedError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *codedError) Unwrap() error { return e.err }

// exitError logs the failure and returns an error that maps to the
// given foundry exit code.
func exitError(code foundry.ExitCode, msg string, err error) error {
	observability.CLILogger.Error(msg, zap.Error(err))
	return &codedError{code: int(code), msg: msg, err: err}
}
