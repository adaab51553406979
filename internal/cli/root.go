// Package cli provides the command-line interface for saupload.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/saupload/saupload/internal/logging"
)

var (
	cfgFile string
	verbose bool
	dryRun  bool

	logger *logging.Logger

	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// Version is the version string reported by --version and the root
// command's help text.
var Version = "v0.1.0-dev"

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "saupload",
		Short: "Service-account upload scheduler",
		Long: `saupload ` + Version + `

Chooses which credential to use next, parameterizes each engine invocation,
observes progress via log stream and control-plane API, accounts bytes
against per-credential quota in real time, and decides when to stop a
stage early, rotate credentials, or abort.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.New()
			if verbose {
				logging.SetGlobalLevel(-1)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (required)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Pass --dry-run through to every engine invocation")

	rootCmd.Version = Version
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI with a root context that is cancelled on
// SIGINT/SIGTERM, and returns the command's error.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nreceived signal %v, cancelling — waiting for in-flight events to flush\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands registers every subcommand on rootCmd.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCleanupCmd())
	rootCmd.AddCommand(newMoveCmd())
}

// GetLogger returns the global CLI logger, creating a default one if
// Execute has not run yet (e.g. in tests).
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.New()
	}
	return logger
}

// GetContext returns the signal-cancelled root context.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// GetDryRun reports whether --dry-run was set on the invoking command.
func GetDryRun() bool {
	return dryRun
}
