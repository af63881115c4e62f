package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/alnah/go-capture/internal/capture"
	"github.com/alnah/go-capture/internal/deliver"
	"github.com/alnah/go-capture/internal/format"
	"github.com/alnah/go-capture/internal/interrupt"
	"github.com/alnah/go-capture/internal/session"
)

// recordOptions holds the validated options for the record command.
type recordOptions struct {
	device       string
	segment      time.Duration
	retries      int
	retryDelay   time.Duration
	timeout      time.Duration
	maxDuration  time.Duration
	backendURL   string
	logFile      string
	deliverEmpty bool
}

// RecordCmd creates the record command.
// The env parameter provides injectable dependencies for testing.
func RecordCmd(env *Env) *cobra.Command {
	var (
		device       string
		segmentStr   string
		retries      int
		retryDelay   time.Duration
		timeout      time.Duration
		maxDuration  time.Duration
		backendURL   string
		logFile      string
		deliverEmpty bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Capture live audio and stream it to the backend in segments",
		Long: `Capture live audio from a microphone and deliver it to the backend
as a sequence of fixed-length segments.

Each segment is encoded as Opus in WebM, tagged with its position in the
session, and uploaded in the background while the next segment records.
Failed uploads are retried a fixed number of times; the recording never
pauses for delivery.

Press Ctrl+C to stop: the in-flight segment is finalized and delivered.
Press Ctrl+C twice within 2 seconds to abort without waiting for uploads.`,
		Example: `  capture record
  capture record --segment 10s --device "MacBook Pro Microphone"
  capture record --max-duration 1h --log-file capture.log
  capture record --backend http://localhost:8000 --retries 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			segment, err := time.ParseDuration(segmentStr)
			if err != nil {
				return fmt.Errorf("invalid segment length %q: %w (use format like 30s, 1m)", segmentStr, ErrInvalidDuration)
			}
			if segment <= 0 {
				return fmt.Errorf("segment length must be positive: %w", ErrInvalidDuration)
			}
			if retries < 0 {
				return ErrInvalidRetryBudget
			}
			if maxDuration < 0 {
				return fmt.Errorf("max duration cannot be negative: %w", ErrInvalidDuration)
			}

			return runRecord(cmd.Context(), env, recordOptions{
				device:       device,
				segment:      segment,
				retries:      retries,
				retryDelay:   retryDelay,
				timeout:      timeout,
				maxDuration:  maxDuration,
				backendURL:   backendURL,
				logFile:      logFile,
				deliverEmpty: deliverEmpty,
			})
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "Audio input device (default: system default)")
	cmd.Flags().StringVar(&segmentStr, "segment", "30s", "Segment length (e.g., 30s, 1m)")
	cmd.Flags().IntVar(&retries, "retries", 3, "Upload retries per chunk beyond the first attempt")
	cmd.Flags().DurationVar(&retryDelay, "retry-delay", 5*time.Second, "Fixed delay between upload retries")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Per-request backend timeout")
	cmd.Flags().DurationVar(&maxDuration, "max-duration", 0, "Stop automatically after this long (0 = unlimited)")
	cmd.Flags().StringVar(&backendURL, "backend", "", "Backend base URL (overrides config)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write delivery diagnostics to a rotating log file")
	cmd.Flags().BoolVar(&deliverEmpty, "deliver-empty", false, "Deliver zero-byte segments instead of dropping them")

	return cmd
}

// runRecord executes the capture and delivery cycle with the given options.
func runRecord(parentCtx context.Context, env *Env, opts recordOptions) error {
	// Load config for the backend URL.
	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
	}

	baseURL := opts.backendURL
	if baseURL == "" {
		baseURL = cfg.BackendURL
	}

	client, err := env.BackendFactory.NewBackend(baseURL, opts.timeout)
	if err != nil {
		return err
	}

	logf, closeLog := newDeliveryLog(env, opts.logFile)
	defer closeLog()

	// Double Ctrl+C detection: first stops segmenting, second aborts.
	handler, ctx := interrupt.NewHandler(parentCtx)
	defer handler.Stop()

	// Registration gates everything: no capture starts without a session id.
	sess, err := session.Begin(ctx, client, env.Now)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stderr, "Session registered: %s\n", sess.ID)

	ffmpegPath, err := env.FFmpegResolver.Resolve()
	if err != nil {
		return err
	}

	recorder, err := env.RecorderFactory.NewRecorder(ctx, ffmpegPath, opts.device)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stderr, "Capturing from %s\n", recorder.Device())

	// The pool outlives the capture context so retries scheduled for
	// already-captured chunks survive the stop.
	pool := deliver.NewPool(context.WithoutCancel(parentCtx), client,
		deliver.WithMaxRetries(opts.retries),
		deliver.WithRetryDelay(opts.retryDelay),
		deliver.WithLogFunc(logf),
	)

	ctrlOpts := []capture.ControllerOption{
		capture.WithSegmentLength(opts.segment),
		capture.WithWarnFunc(func(msg string) { fmt.Fprintln(env.Stderr, msg) }),
	}
	if opts.deliverEmpty {
		ctrlOpts = append(ctrlOpts, capture.WithEmptySegmentPolicy(capture.EmptyDeliver))
	}

	controller, err := capture.NewController(recorder, pool, ctrlOpts...)
	if err != nil {
		return err
	}

	if opts.maxDuration > 0 {
		timer := time.AfterFunc(opts.maxDuration, controller.Stop)
		defer timer.Stop()
	}

	fmt.Fprintf(env.Stderr, "Recording in %s segments... (press Ctrl+C to stop)\n",
		format.DurationHuman(opts.segment))

	if err := controller.Run(ctx, sess.ID); err != nil {
		return err
	}

	if handler.WasInterrupted() {
		behavior := handler.WaitForDecision(
			"Ctrl+C again to abandon pending uploads, wait 2s to let them finish...")
		if behavior == interrupt.Abort {
			return context.Canceled
		}
	}

	fmt.Fprintf(env.Stderr, "Captured %d chunks, waiting for deliveries to finish...\n",
		controller.Sequence())
	pool.Wait()
	fmt.Fprintln(env.Stderr, "Done.")
	return nil
}

// newDeliveryLog builds the delivery diagnostics sink. With --log-file the
// diagnostics go to a size-rotated file; otherwise they share stderr with
// the progress messages.
func newDeliveryLog(env *Env, path string) (deliver.LogFunc, func()) {
	if path == "" {
		logger := log.New(env.Stderr, "", log.LstdFlags)
		return logger.Printf, func() {}
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
	}
	logger := log.New(rotator, "", log.LstdFlags)
	return logger.Printf, func() { _ = rotator.Close() }
}
