// Coverage Notes:
// - All tests inject dependencies via NewHandlerWithOptions: mock signal
//   channels, exit funcs, and clocks keep everything deterministic.
// - NowFunc is manipulated so the 2s abort window resolves in milliseconds.
// - stderr is written from two goroutines, so tests use a locked buffer.

package interrupt_test

import (
	"bytes"
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alnah/go-capture/internal/interrupt"
)

// syncBuffer is a thread-safe bytes.Buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func (b *syncBuffer) Contains(substr string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Contains(b.buf.Bytes(), []byte(substr))
}

// ---------------------------------------------------------------------------
// First interrupt
// ---------------------------------------------------------------------------

func TestHandler_FirstInterruptCancelsContext(t *testing.T) {
	t.Parallel()

	sigCh := make(chan os.Signal, 2)
	var stderr syncBuffer

	h, ctx := interrupt.NewHandlerWithOptions(context.Background(), interrupt.Options{
		SigCh:  sigCh,
		Stderr: &stderr,
	})
	defer h.Stop()

	sigCh <- os.Interrupt

	select {
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("context should be canceled after first signal")
	}

	if !h.WasInterrupted() {
		t.Error("WasInterrupted should be true after first signal")
	}
}

// ---------------------------------------------------------------------------
// Double interrupt
// ---------------------------------------------------------------------------

func TestHandler_DoubleInterruptWithinWindowAborts(t *testing.T) {
	t.Parallel()

	sigCh := make(chan os.Signal, 2)
	var stderr syncBuffer
	var exitCode atomic.Int32
	exitCode.Store(-1)

	// First signal at T=0, second at T=1s, inside the 2s window.
	callCount := 0
	var mu sync.Mutex
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mockNow := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		callCount++
		if callCount == 1 {
			return base
		}
		return base.Add(time.Second)
	}

	h, ctx := interrupt.NewHandlerWithOptions(context.Background(), interrupt.Options{
		SigCh:    sigCh,
		ExitFunc: func(code int) { exitCode.Store(int32(code)) },
		NowFunc:  mockNow,
		Stderr:   &stderr,
	})
	defer h.Stop()

	sigCh <- os.Interrupt

	select {
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("context should be canceled after first signal")
	}

	sigCh <- os.Interrupt

	deadline := time.After(time.Second)
	for exitCode.Load() == -1 {
		select {
		case <-deadline:
			t.Fatal("exitFunc should have been called")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	if got := exitCode.Load(); got != 130 {
		t.Errorf("exitFunc called with %d, want 130", got)
	}
	if !stderr.Contains("Aborted.") {
		t.Errorf("stderr missing abort message, got: %q", stderr.String())
	}
}

func TestHandler_DoubleInterruptOutsideWindowIgnored(t *testing.T) {
	t.Parallel()

	sigCh := make(chan os.Signal, 2)
	var stderr syncBuffer
	var exitCalled atomic.Bool

	// Second signal arrives 3s after the first, outside the 2s window.
	callCount := 0
	var mu sync.Mutex
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mockNow := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		callCount++
		if callCount == 1 {
			return base
		}
		return base.Add(3 * time.Second)
	}

	h, ctx := interrupt.NewHandlerWithOptions(context.Background(), interrupt.Options{
		SigCh:    sigCh,
		ExitFunc: func(int) { exitCalled.Store(true) },
		NowFunc:  mockNow,
		Stderr:   &stderr,
	})
	defer h.Stop()

	sigCh <- os.Interrupt

	select {
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("context should be canceled after first signal")
	}

	sigCh <- os.Interrupt
	time.Sleep(50 * time.Millisecond)

	if exitCalled.Load() {
		t.Error("exitFunc should not be called outside the abort window")
	}
	if !h.WasInterrupted() {
		t.Error("WasInterrupted should be true")
	}
}

// ---------------------------------------------------------------------------
// WaitForDecision
// ---------------------------------------------------------------------------

func TestHandler_WaitForDecision_DrainAfterWindow(t *testing.T) {
	t.Parallel()

	sigCh := make(chan os.Signal, 2)
	var stderr syncBuffer

	// Interrupt at T=0, later calls at T=1.95s: remaining window ~50ms.
	callCount := 0
	var mu sync.Mutex
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mockNow := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		callCount++
		if callCount == 1 {
			return base
		}
		return base.Add(1950 * time.Millisecond)
	}

	h, ctx := interrupt.NewHandlerWithOptions(context.Background(), interrupt.Options{
		SigCh:   sigCh,
		NowFunc: mockNow,
		Stderr:  &stderr,
	})
	defer h.Stop()

	sigCh <- os.Interrupt

	select {
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("context should be canceled")
	}

	start := time.Now()
	behavior := h.WaitForDecision("Press Ctrl+C again to abort...")
	elapsed := time.Since(start)

	if behavior != interrupt.Drain {
		t.Errorf("WaitForDecision returned %v, want Drain", behavior)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("WaitForDecision took %v, expected ~50ms", elapsed)
	}
	if !stderr.Contains("Press Ctrl+C again to abort...") {
		t.Errorf("stderr missing prompt, got: %q", stderr.String())
	}
}

func TestHandler_WaitForDecision_AbortOnSecondSignal(t *testing.T) {
	t.Parallel()

	sigCh := make(chan os.Signal, 2)
	var stderr syncBuffer
	var exitCode atomic.Int32
	exitCode.Store(-1)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mockNow := func() time.Time { return base }

	h, ctx := interrupt.NewHandlerWithOptions(context.Background(), interrupt.Options{
		SigCh:    sigCh,
		ExitFunc: func(code int) { exitCode.Store(int32(code)) },
		NowFunc:  mockNow,
		Stderr:   &stderr,
	})
	defer h.Stop()

	sigCh <- os.Interrupt

	select {
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("context should be canceled")
	}

	behaviorCh := make(chan interrupt.Behavior, 1)
	go func() {
		behaviorCh <- h.WaitForDecision("Press Ctrl+C again to abort...")
	}()

	time.Sleep(20 * time.Millisecond)
	sigCh <- os.Interrupt

	select {
	case behavior := <-behaviorCh:
		if behavior != interrupt.Abort {
			t.Errorf("WaitForDecision returned %v, want Abort", behavior)
		}
	case <-time.After(time.Second):
		if exitCode.Load() != 130 {
			t.Fatal("neither WaitForDecision returned Abort nor exitFunc was called")
		}
	}
}

func TestHandler_WaitForDecision_NotInterrupted(t *testing.T) {
	t.Parallel()

	var stderr syncBuffer
	h, _ := interrupt.NewHandlerWithOptions(context.Background(), interrupt.Options{
		SigCh:  make(chan os.Signal, 2),
		Stderr: &stderr,
	})
	defer h.Stop()

	start := time.Now()
	behavior := h.WaitForDecision("should not appear")
	elapsed := time.Since(start)

	if behavior != interrupt.Drain {
		t.Errorf("WaitForDecision returned %v, want Drain", behavior)
	}
	if elapsed > 50*time.Millisecond {
		t.Errorf("WaitForDecision took %v, expected immediate return", elapsed)
	}
	if stderr.Len() > 0 {
		t.Errorf("stderr should be empty, got: %q", stderr.String())
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestHandler_StopIgnoresLaterSignals(t *testing.T) {
	t.Parallel()

	sigCh := make(chan os.Signal, 2)
	h, _ := interrupt.NewHandlerWithOptions(context.Background(), interrupt.Options{
		SigCh: sigCh,
	})

	h.Stop()
	sigCh <- os.Interrupt
	time.Sleep(50 * time.Millisecond)

	if h.WasInterrupted() {
		t.Error("WasInterrupted should be false after Stop")
	}

	h.Stop() // idempotent
}

func TestHandler_ParentContextCanceled(t *testing.T) {
	t.Parallel()

	parentCtx, parentCancel := context.WithCancel(context.Background())
	h, ctx := interrupt.NewHandlerWithOptions(parentCtx, interrupt.Options{
		SigCh: make(chan os.Signal, 2),
	})
	defer h.Stop()

	parentCancel()

	select {
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Error("handler context should follow parent cancellation")
	}

	if h.WasInterrupted() {
		t.Error("WasInterrupted should be false when canceled by parent")
	}
}

func TestBehavior_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		behavior interrupt.Behavior
		want     string
	}{
		{interrupt.Drain, "Drain"},
		{interrupt.Abort, "Abort"},
		{interrupt.Behavior(99), "Behavior(99)"},
	}

	for _, tt := range tests {
		if got := tt.behavior.String(); got != tt.want {
			t.Errorf("%v.String() = %q, want %q", tt.behavior, got, tt.want)
		}
	}
}
