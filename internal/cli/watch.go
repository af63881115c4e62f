package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alnah/go-capture/internal/poll"
)

// WatchCmd creates the watch command (recurring backend status poll).
// The env parameter provides injectable dependencies for testing.
func WatchCmd(env *Env) *cobra.Command {
	var (
		backendURL string
		timeout    time.Duration
		interval   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll backend processing status on an interval",
		Long: `Fetch and display the backend's processing status repeatedly
until interrupted.

A failed fetch prints an error line and the poll continues; the poll only
stops on Ctrl+C.`,
		Example: `  capture watch
  capture watch --interval 5s
  capture watch --backend http://localhost:8000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("interval must be positive: %w", ErrInvalidDuration)
			}
			return runWatch(cmd.Context(), env, backendURL, timeout, interval)
		},
	}

	cmd.Flags().StringVar(&backendURL, "backend", "", "Backend base URL (overrides config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Per-request backend timeout")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Time between fetches")

	return cmd
}

// runWatch polls status until the context is canceled.
func runWatch(ctx context.Context, env *Env, backendURL string, timeout, interval time.Duration) error {
	client, err := newBackend(env, backendURL, timeout)
	if err != nil {
		return err
	}

	poller := poll.NewPoller(client, env.Stdout, poll.WithInterval(interval))

	// Show something immediately rather than waiting out the first tick.
	_ = poller.FetchOnce(ctx)

	poller.Toggle(ctx)
	defer poller.Stop()

	<-ctx.Done()
	fmt.Fprintln(env.Stderr, "Stopped.")
	return nil
}
