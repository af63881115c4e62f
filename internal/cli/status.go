package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alnah/go-capture/internal/poll"
)

// StatusCmd creates the status command (one-shot backend status fetch).
// The env parameter provides injectable dependencies for testing.
func StatusCmd(env *Env) *cobra.Command {
	var (
		backendURL string
		timeout    time.Duration
		sessionID  string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show backend processing status",
		Long: `Fetch and display the backend's processing status.

Without flags, shows the status of all known sessions. With --session,
shows the status of a single session.`,
		Example: `  capture status
  capture status --session 2f1c9a
  capture status --backend http://localhost:8000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), env, backendURL, timeout, sessionID)
		},
	}

	cmd.Flags().StringVar(&backendURL, "backend", "", "Backend base URL (overrides config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Per-request backend timeout")
	cmd.Flags().StringVar(&sessionID, "session", "", "Show a single session instead of all")

	return cmd
}

// runStatus performs one status fetch and renders it to stdout.
func runStatus(ctx context.Context, env *Env, backendURL string, timeout time.Duration, sessionID string) error {
	client, err := newBackend(env, backendURL, timeout)
	if err != nil {
		return err
	}

	if sessionID != "" {
		status, err := client.Status(ctx, sessionID)
		if err != nil {
			fmt.Fprintln(env.Stdout, "Error fetching status.")
			return err
		}
		fmt.Fprintln(env.Stdout, indentJSON(status))
		return nil
	}

	poller := poll.NewPoller(client, env.Stdout)
	return poller.FetchOnce(ctx)
}

// newBackend resolves the backend base URL (flag over config) and builds a
// client for it.
func newBackend(env *Env, backendURL string, timeout time.Duration) (Backend, error) {
	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
	}

	baseURL := backendURL
	if baseURL == "" {
		baseURL = cfg.BackendURL
	}

	return env.BackendFactory.NewBackend(baseURL, timeout)
}

// indentJSON pretty-prints a JSON document, falling back to the raw bytes.
func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
