package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alnah/go-capture/internal/backend"
	"github.com/alnah/go-capture/internal/capture"
	"github.com/alnah/go-capture/internal/cli"
	"github.com/alnah/go-capture/internal/ffmpeg"
	"github.com/alnah/go-capture/internal/session"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK        = 0
	ExitGeneral   = 1
	ExitUsage     = 2
	ExitSetup     = 3
	ExitSession   = 4
	ExitInterrupt = 130
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	// Context with signal cancellation.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create the CLI environment with production defaults.
	env := cli.DefaultEnv()

	// Root command.
	rootCmd := &cobra.Command{
		Use:     "capture",
		Short:   "Capture live audio and stream it to a processing backend",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	// Subcommands.
	rootCmd.AddCommand(cli.RecordCmd(env))
	rootCmd.AddCommand(cli.StatusCmd(env))
	rootCmd.AddCommand(cli.WatchCmd(env))
	rootCmd.AddCommand(cli.DevicesCmd(env))
	rootCmd.AddCommand(cli.ConfigCmd(env))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors to exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	// Context cancellation (interrupt).
	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Usage errors (ExitUsage = 2): Cobra flag/arg parsing errors.
	// Cobra doesn't expose typed errors, so we check for known message
	// patterns, plus our own flag validation sentinels.
	if isCobraUsageError(err) || errors.Is(err, cli.ErrInvalidDuration) ||
		errors.Is(err, cli.ErrInvalidRetryBudget) {
		return ExitUsage
	}

	// Setup errors (ExitSetup = 3): missing tools or unusable environment.
	if errors.Is(err, ffmpeg.ErrNotFound) || errors.Is(err, capture.ErrCaptureUnavailable) ||
		errors.Is(err, capture.ErrNoAudioDevice) || errors.Is(err, backend.ErrBaseURLMissing) {
		return ExitSetup
	}

	// Session errors (ExitSession = 4): the backend refused to open a session.
	if errors.Is(err, session.ErrRegistrationFailed) {
		return ExitSession
	}

	return ExitGeneral
}

// cobraUsageErrorPatterns contains error message substrings that indicate
// Cobra usage errors. These patterns are stable across Cobra versions
// (tested with v1.8+).
var cobraUsageErrorPatterns = []string{
	"required flag",             // Missing required flag
	"unknown flag",              // Flag doesn't exist
	"unknown shorthand",         // Short flag doesn't exist
	"unknown command",           // Subcommand doesn't exist
	"flag needs an argument",    // Flag provided without value
	"invalid argument",          // Invalid flag value type
	"if any flags in the group", // Mutually exclusive flag violation
	"accepts ",                  // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"requires at least",         // Too few arguments
	"requires at most",          // Too many arguments
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
