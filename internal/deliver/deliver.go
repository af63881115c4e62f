// Package deliver sends chunks to the backend with bounded fixed-delay
// retry. Delivery is fire-and-forget with respect to the capture pipeline:
// dispatching never blocks, chunks are independent units of work, and a
// chunk that exhausts its retry budget is dropped with a diagnostic.
package deliver

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-capture/internal/apierr"
	"github.com/alnah/go-capture/internal/backend"
	"github.com/alnah/go-capture/internal/capture"
)

// Default delivery parameters.
const (
	// defaultMaxRetries is the retry budget beyond the first attempt
	// (4 attempts total).
	defaultMaxRetries = 3

	// defaultRetryDelay is the fixed spacing between attempts. Retries run
	// on their own timers, independent of the capture timeline.
	defaultRetryDelay = 5 * time.Second
)

// Uploader sends one chunk to the backend. *backend.Client implements this.
type Uploader interface {
	UploadChunk(ctx context.Context, chunk capture.Chunk) (backend.Ack, error)
}

// LogFunc receives delivery diagnostics (successes, retries, permanent
// failures). Set to nil to suppress.
type LogFunc func(format string, args ...any)

// Compile-time interface implementation checks.
var (
	_ capture.Dispatcher = (*Pool)(nil)
	_ Uploader           = (*backend.Client)(nil)
)

// Pool delivers dispatched chunks concurrently. Each chunk gets its own
// goroutine and its own retry timers, so one chunk's failure or backoff
// never delays another's. Concurrency is naturally bounded by the segment
// cadence: a new chunk arrives at most once per segment length, and a fully
// failing chunk occupies its goroutine for a bounded time.
//
// The pool's context is decoupled from the capture lifecycle on purpose:
// stopping the recording does not cancel retries already scheduled for
// captured chunks.
type Pool struct {
	uploader   Uploader
	maxRetries int
	delay      time.Duration
	logf       LogFunc

	ctx   context.Context
	group *errgroup.Group
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithMaxRetries sets the retry budget beyond the first attempt. Default: 3.
func WithMaxRetries(n int) PoolOption {
	return func(p *Pool) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithRetryDelay sets the fixed spacing between attempts. Default: 5s.
func WithRetryDelay(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.delay = d
		}
	}
}

// WithLogFunc sets the diagnostic sink.
func WithLogFunc(fn LogFunc) PoolOption {
	return func(p *Pool) {
		p.logf = fn
	}
}

// NewPool creates a delivery pool. ctx bounds all deliveries including
// their retries; pass a context that outlives the capture stop so pending
// retries can finish.
func NewPool(ctx context.Context, uploader Uploader, opts ...PoolOption) *Pool {
	p := &Pool{
		uploader:   uploader,
		maxRetries: defaultMaxRetries,
		delay:      defaultRetryDelay,
		logf:       nil,
		ctx:        ctx,
		group:      &errgroup.Group{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dispatch accepts a chunk for delivery and returns immediately. Outcomes
// are reported only through the diagnostic log; the caller never learns
// whether the chunk arrived.
func (p *Pool) Dispatch(chunk capture.Chunk) {
	p.group.Go(func() error {
		p.deliver(chunk)
		// Delivery failures are diagnostics, not group errors: one chunk's
		// outcome must not affect any other's.
		return nil
	})
}

// deliver runs the attempt/retry cycle for one chunk.
func (p *Pool) deliver(chunk capture.Chunk) {
	attempt := 0
	total := p.maxRetries + 1

	ack, err := apierr.RetryFixed(p.ctx,
		apierr.RetryConfig{MaxRetries: p.maxRetries, Delay: p.delay},
		func() (backend.Ack, error) {
			attempt++
			ack, err := p.uploader.UploadChunk(p.ctx, chunk)
			if err != nil {
				p.logInfof("delivery of %s failed (attempt %d/%d): %v", chunk, attempt, total, err)
			}
			return ack, err
		},
		apierr.Retryable,
	)

	switch {
	case err != nil:
		p.logInfof("giving up on %s after %d attempts: %v", chunk, attempt, err)
	case ack.Duplicate():
		p.logInfof("%s already processed by backend", chunk)
	default:
		p.logInfof("delivered %s", chunk)
	}
}

// Wait blocks until every dispatched chunk has finished its delivery cycle,
// successfully or not.
func (p *Pool) Wait() {
	_ = p.group.Wait()
}

// logInfof writes a diagnostic line if a sink is configured.
func (p *Pool) logInfof(format string, args ...any) {
	if p.logf != nil {
		p.logf(format, args...)
	}
}
