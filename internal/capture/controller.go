package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State is the recording cycle's lifecycle state.
type State int

const (
	// Idle means no recording cycle is running.
	Idle State = iota

	// Segmenting means segments are being captured back-to-back.
	Segmenting

	// Stopping means Stop was requested: the in-flight segment finishes and
	// is delivered, but no further segment opens.
	Stopping
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Segmenting:
		return "Segmenting"
	case Stopping:
		return "Stopping"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// defaultSegmentLength is the fixed duration of one capture segment.
const defaultSegmentLength = 30 * time.Second

// WarnFunc is a callback for diagnostic messages during the recording cycle.
// Set to nil to suppress warnings.
type WarnFunc func(msg string)

// defaultWarnFunc writes warnings to stderr.
func defaultWarnFunc(msg string) {
	fmt.Fprintln(os.Stderr, msg)
}

// Controller drives the capture device through a continuous sequence of
// fixed-duration segments. Each finished, non-empty segment becomes exactly
// one chunk: tagged by position, numbered by a monotonically increasing
// sequence, and handed to the dispatcher as soon as it is available.
//
// Segments are opened strictly sequentially by an explicit loop (one segment
// closes, the next opens), so segment starts are ordered even though chunk
// deliveries complete out of order.
type Controller struct {
	recorder   SegmentRecorder
	dispatcher Dispatcher
	segmentLen time.Duration
	policy     EmptySegmentPolicy
	warn       WarnFunc

	// Injectable dependencies (defaults to OS implementations).
	tempDir tempDirCreator
	files   segmentFS

	mu        sync.Mutex
	state     State
	seq       int
	segCancel context.CancelFunc
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithSegmentLength sets the fixed duration of each capture segment.
// Default: 30s.
func WithSegmentLength(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.segmentLen = d
	}
}

// WithEmptySegmentPolicy sets the handling of zero-byte segments.
// Default: EmptyDrop.
func WithEmptySegmentPolicy(p EmptySegmentPolicy) ControllerOption {
	return func(c *Controller) {
		c.policy = p
	}
}

// WithWarnFunc sets a callback for diagnostic messages.
func WithWarnFunc(fn WarnFunc) ControllerOption {
	return func(c *Controller) {
		c.warn = fn
	}
}

// WithTempDirCreator sets the temp directory creator.
func WithTempDirCreator(t tempDirCreator) ControllerOption {
	return func(c *Controller) {
		c.tempDir = t
	}
}

// WithSegmentFS sets the segment file reader/remover.
func WithSegmentFS(fs segmentFS) ControllerOption {
	return func(c *Controller) {
		c.files = fs
	}
}

// NewController creates a Controller with functional options.
func NewController(recorder SegmentRecorder, dispatcher Dispatcher, opts ...ControllerOption) (*Controller, error) {
	c := &Controller{
		recorder:   recorder,
		dispatcher: dispatcher,
		segmentLen: defaultSegmentLength,
		policy:     EmptyDrop,
		warn:       defaultWarnFunc,
		tempDir:    osTempDirCreator{},
		files:      osSegmentFS{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.segmentLen <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSegmentLength, c.segmentLen)
	}
	return c, nil
}

// Run executes the recording cycle for one session until Stop is called or
// ctx is canceled. Both stop paths are cooperative: the in-flight segment
// finishes early, its chunk is still dispatched, and then no further segment
// opens.
//
// Run blocks the calling goroutine for the whole cycle and returns nil on a
// clean stop. Delivery outcomes never surface here: the cycle does not learn
// whether a dispatched chunk arrived.
func (c *Controller) Run(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	c.state = Segmenting
	c.seq = 0
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state = Idle
		c.mu.Unlock()
	}()

	dir, err := c.tempDir.MkdirTemp("", "go-capture-*")
	if err != nil {
		return fmt.Errorf("failed to create segment directory: %w", err)
	}
	defer func() { _ = c.files.RemoveAll(dir) }()

	for segment := 0; ; segment++ {
		segCtx, ok := c.beginSegment(ctx)
		if !ok {
			return nil
		}

		path := filepath.Join(dir, fmt.Sprintf("segment_%03d.webm", segment))
		recErr := c.recorder.RecordSegment(segCtx, c.segmentLen, path)
		c.endSegment()

		// An early-stop cancel is not a failure: the recorder finalizes the
		// partial segment and its data goes through the normal path below.
		if recErr != nil && segCtx.Err() == nil {
			c.warnf("Warning: segment %d failed: %v", segment, recErr)
			_ = c.files.Remove(path)
			continue
		}

		c.finishSegment(sessionID, path)
	}
}

// beginSegment checks the recording flag at the segment boundary and, if
// still active, opens a cancelable context for the next capture unit.
func (c *Controller) beginSegment(ctx context.Context) (context.Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Segmenting || ctx.Err() != nil {
		return nil, false
	}
	segCtx, cancel := context.WithCancel(ctx)
	c.segCancel = cancel
	return segCtx, true
}

// endSegment releases the current segment's cancel handle.
func (c *Controller) endSegment() {
	c.mu.Lock()
	if c.segCancel != nil {
		c.segCancel()
		c.segCancel = nil
	}
	c.mu.Unlock()
}

// finishSegment turns a closed segment file into a chunk and dispatches it.
// The segment file is released either way; chunks live only in memory from
// here until delivery.
func (c *Controller) finishSegment(sessionID, path string) {
	data, err := c.files.ReadFile(path)
	_ = c.files.Remove(path)
	if err != nil {
		c.warnf("Warning: could not read segment %s: %v", filepath.Base(path), err)
		return
	}

	if len(data) == 0 && c.policy == EmptyDrop {
		// Dropped without consuming a sequence number: delivered chunks
		// stay gap-free.
		c.warnf("Warning: empty segment dropped")
		return
	}

	c.mu.Lock()
	seq := c.seq
	c.seq++
	c.mu.Unlock()

	c.dispatcher.Dispatch(Chunk{
		SessionID: sessionID,
		Sequence:  seq,
		Tag:       TagFor(seq),
		Data:      data,
	})
}

// Stop requests a cooperative stop: the recording flag is cleared and the
// in-flight capture unit is asked to finish. Its chunk is still delivered;
// no segment opens afterwards. Safe to call from any goroutine, idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Segmenting {
		return
	}
	c.state = Stopping
	if c.segCancel != nil {
		c.segCancel()
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Sequence returns the next sequence number to be assigned, which equals the
// number of chunks dispatched so far in the current or last session.
func (c *Controller) Sequence() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// warnf formats a diagnostic message through the warn callback.
func (c *Controller) warnf(format string, args ...any) {
	if c.warn != nil {
		c.warn(fmt.Sprintf(format, args...))
	}
}
