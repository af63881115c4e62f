// Package interrupt implements double Ctrl+C handling for a recording
// session: the first interrupt stops segmenting and lets pending deliveries
// drain, a second interrupt within the window abandons them and exits.
package interrupt

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Behavior is the user's intent after the first Ctrl+C.
type Behavior int

const (
	// Drain means stop capturing but wait for pending chunk deliveries.
	Drain Behavior = iota
	// Abort means exit without waiting for deliveries.
	Abort
)

func (b Behavior) String() string {
	switch b {
	case Drain:
		return "Drain"
	case Abort:
		return "Abort"
	default:
		return fmt.Sprintf("Behavior(%d)", b)
	}
}

// ExitInterrupt is the exit code for interrupt (130 = 128 + SIGINT).
const ExitInterrupt = 130

// abortWindow is how long after the first Ctrl+C a second one aborts.
const abortWindow = 2 * time.Second

// pollInterval is how often WaitForDecision checks for an abort.
const pollInterval = 100 * time.Millisecond

const abortMessage = "\nAborted."

// Handler listens for SIGINT/SIGTERM and cancels a derived context on the
// first signal. A second signal within the abort window exits immediately.
type Handler struct {
	mu             sync.Mutex
	firstInterrupt time.Time
	interrupted    bool
	aborted        bool
	stopped        bool
	cancelFunc     context.CancelFunc
	done           chan struct{}

	exitFunc func(int)
	nowFunc  func() time.Time
	stderr   io.Writer
}

// Options holds injectable dependencies for testing.
type Options struct {
	SigCh    <-chan os.Signal
	ExitFunc func(int)
	NowFunc  func() time.Time
	// Stderr must be safe for concurrent writes. Defaults to os.Stderr.
	Stderr io.Writer
}

// NewHandler creates a handler listening for SIGINT/SIGTERM. The returned
// context is canceled on the first interrupt.
func NewHandler(parent context.Context) (*Handler, context.Context) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return newHandler(parent, Options{SigCh: sigCh})
}

// NewHandlerWithOptions creates a handler with injected dependencies.
func NewHandlerWithOptions(parent context.Context, opts Options) (*Handler, context.Context) {
	return newHandler(parent, opts)
}

func newHandler(parent context.Context, opts Options) (*Handler, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	exitFunc := opts.ExitFunc
	if exitFunc == nil {
		exitFunc = os.Exit
	}
	nowFunc := opts.NowFunc
	if nowFunc == nil {
		nowFunc = time.Now
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	h := &Handler{
		cancelFunc: cancel,
		done:       make(chan struct{}),
		exitFunc:   exitFunc,
		nowFunc:    nowFunc,
		stderr:     stderr,
	}

	if opts.SigCh != nil {
		go h.listen(opts.SigCh)
	}

	return h, ctx
}

func (h *Handler) listen(sigCh <-chan os.Signal) {
	for {
		select {
		case <-h.done:
			return
		case _, ok := <-sigCh:
			if !ok {
				return
			}

			h.mu.Lock()
			if h.stopped {
				h.mu.Unlock()
				return
			}
			now := h.nowFunc()

			if !h.interrupted {
				h.interrupted = true
				h.firstInterrupt = now
				h.cancelFunc()
				h.mu.Unlock()
				continue
			}

			if now.Sub(h.firstInterrupt) <= abortWindow {
				h.aborted = true
				h.mu.Unlock()
				fmt.Fprintln(h.stderr, abortMessage)
				h.exitFunc(ExitInterrupt)
				return // exitFunc may not exit in tests
			}

			h.mu.Unlock()
		}
	}
}

// WasInterrupted reports whether at least one interrupt was received.
func (h *Handler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

// WaitForDecision waits out the abort window after an interrupt and returns
// the user's intent. A second Ctrl+C within the window returns Abort,
// otherwise Drain. The message is shown while waiting.
func (h *Handler) WaitForDecision(message string) Behavior {
	h.mu.Lock()
	if !h.interrupted {
		h.mu.Unlock()
		return Drain
	}
	if h.aborted {
		h.mu.Unlock()
		return Abort
	}
	firstInterrupt := h.firstInterrupt
	h.mu.Unlock()

	elapsed := h.nowFunc().Sub(firstInterrupt)
	remaining := abortWindow - elapsed
	if remaining <= 0 {
		return Drain
	}

	fmt.Fprintln(h.stderr, message)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(remaining)
	defer deadline.Stop()

	for {
		select {
		case <-deadline.C:
			return Drain
		case <-ticker.C:
			h.mu.Lock()
			if h.aborted {
				h.mu.Unlock()
				return Abort
			}
			h.mu.Unlock()
		}
	}
}

// Stop releases the signal handler. Safe to call more than once.
func (h *Handler) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	signal.Reset(syscall.SIGINT, syscall.SIGTERM)
	close(h.done)
}
