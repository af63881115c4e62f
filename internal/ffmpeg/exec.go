// Package ffmpeg locates and executes the FFmpeg binary.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// RunGraceful executes FFmpeg with graceful shutdown on context cancellation.
// When ctx is canceled, it sends 'q' to stdin so FFmpeg finalizes the file
// (writes headers, closes the container), then waits up to timeout before
// killing. This works cross-platform, unlike SIGTERM.
//
// A cancellation that FFmpeg honors is reported as success: the output file
// holds a valid partial recording.
func RunGraceful(ctx context.Context, ffmpegPath string, args []string, timeout time.Duration) error {
	cmd := exec.Command(ffmpegPath, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	// FFmpeg writes most output to stderr.
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("ffmpeg: %w\nOutput: %s", err, stderr.String())
		}
		return nil

	case <-ctx.Done():
		// Request graceful exit so the container is finalized.
		_, _ = io.WriteString(stdin, "q")
		_ = stdin.Close()

		select {
		case <-done:
			// FFmpeg exits non-zero when interrupted; the file is still valid.
			return nil

		case <-time.After(timeout):
			_ = cmd.Process.Kill()
			<-done // Wait for process to be reaped.
			return fmt.Errorf("%w: killed after %v", ErrTimeout, timeout)
		}
	}
}

// RunOutput executes FFmpeg and captures its stderr output.
// FFmpeg writes diagnostic output (device lists, probe info) to stderr, and
// often returns non-zero exit codes for valid operations (-list_devices
// returns 1), so the output is returned even on error.
func RunOutput(ctx context.Context, ffmpegPath string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stderr.String(), err
}
