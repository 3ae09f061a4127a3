// Package cmd provides the CLI commands for userindex.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/userindex/internal/config"
	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/logging"
	"github.com/Aman-CERP/userindex/internal/profiling"
	"github.com/Aman-CERP/userindex/pkg/version"
)

// Global flags shared by every subcommand.
var (
	debugMode      bool
	configDir      string
	profileCPU     string
	profileMem     string
	profileSession *profiling.Session
	loggingCleanup func()
)

// NewRootCmd creates the root command for the userindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "userindex",
		Short: "Searchable local copy of a remote user directory",
		Long: `userindex pulls user records from a remote JSON source into a local
store, indexes them for free-text search and serves lookups over a
Unix-socket daemon, an MCP stdio server and the command line.

Run 'userindex serve' to start the daemon, then 'userindex search <text>'.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: startProfilingAndLogging,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return stopProfilingAndLogging()
		},
	}

	cmd.SetVersionTemplate("userindex version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.userindex/logs/")
	cmd.PersistentFlags().StringVar(&configDir, "dir", ".", "Directory searched for .userindex.yaml")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write heap profile to file on exit")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLoadCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints failures in CLI form.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		_, _ = fmt.Fprint(os.Stderr, apperrors.FormatForCLI(err))
		_ = stopProfilingAndLogging()
	}
	return err
}

// startProfilingAndLogging installs the CLI logger and starts profiling.
// Without --debug only warnings reach stderr; serve replaces this logger
// with its own configuration.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.Config{Level: "warn", WriteToStderr: true}
	if debugMode {
		logCfg = logging.DefaultConfig()
		logCfg.Level = "debug"
	}
	if err := installLogger(logCfg); err != nil {
		return err
	}

	session, err := profiling.Start(profiling.Options{CPUPath: profileCPU, HeapPath: profileMem})
	if err != nil {
		return err
	}
	profileSession = session
	return nil
}

// installLogger swaps the default logger, closing the previous log file.
func installLogger(cfg logging.Config) error {
	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if loggingCleanup != nil {
		loggingCleanup()
	}
	loggingCleanup = cleanup
	return nil
}

func stopProfilingAndLogging() error {
	err := profileSession.Stop()
	profileSession = nil
	if loggingCleanup != nil {
		slog.Debug("logging_stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// loadConfig loads the effective configuration for --dir.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, apperrors.ConfigError(err.Error(), nil).
			WithSuggestion("Run 'userindex config show' to inspect the effective configuration.")
	}
	return cfg, nil
}
