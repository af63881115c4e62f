// Package poll renders backend status, on demand or on a recurring
// interval. The recurring poll is a toggle: at most one interval runs at a
// time, and its handle exists exactly while polling is on.
package poll

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// defaultInterval is the spacing between recurring status fetches.
const defaultInterval = 2 * time.Second

// fetchErrText replaces the status display when a fetch fails. The failure
// never stops an active poll.
const fetchErrText = "Error fetching status."

// Fetcher retrieves the all-conversations status document.
// *backend.Client implements this.
type Fetcher interface {
	StatusAll(ctx context.Context) (json.RawMessage, error)
}

// Poller fetches and renders backend status to a writer.
type Poller struct {
	fetch    Fetcher
	out      io.Writer
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc // non-nil iff polling is on
	done   chan struct{}
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the recurring fetch interval. Default: 2s.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// NewPoller creates a Poller rendering to out.
func NewPoller(fetch Fetcher, out io.Writer, opts ...PollerOption) *Poller {
	p := &Poller{
		fetch:    fetch,
		out:      out,
		interval: defaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchOnce performs a single status fetch and renders the result: the
// response JSON pretty-printed on success, a fixed error line on failure.
// The fetch error is returned so one-shot callers can set an exit code;
// the recurring poll ignores it.
func (p *Poller) FetchOnce(ctx context.Context) error {
	status, err := p.fetch.StatusAll(ctx)
	if err != nil {
		fmt.Fprintln(p.out, fetchErrText)
		return err
	}
	fmt.Fprintln(p.out, prettyJSON(status))
	return nil
}

// Toggle flips the recurring poll. Off to on starts one interval; on to off
// cancels it. Returns the new state. The handle is swapped under the lock,
// so re-invocation can never leave two intervals running.
func (p *Poller) Toggle(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
		p.done = nil
		return false
	}

	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go p.loop(pollCtx, done)
	return true
}

// Active reports whether a recurring poll is running.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Stop turns the recurring poll off if it is on and waits for the loop
// goroutine to exit. Safe to call regardless of state.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// loop fetches on every tick until canceled.
func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.FetchOnce(ctx)
		}
	}
}

// prettyJSON indents a JSON document for display. Invalid JSON is rendered
// as-is rather than suppressed.
func prettyJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
