package capture

import (
	"fmt"

	"github.com/alnah/go-capture/internal/format"
)

// Tag marks a chunk's position in the recording it belongs to.
// The receiver uses tags together with sequence numbers to reassemble
// the ordered stream.
type Tag string

const (
	// TagFirst marks the chunk with sequence number 0.
	TagFirst Tag = "first"

	// TagMiddle marks every chunk after the first. No terminal tag is ever
	// emitted: the last chunk before stop is still "middle".
	TagMiddle Tag = "middle"
)

// TagFor returns the positional tag for a sequence number.
func TagFor(sequence int) Tag {
	if sequence == 0 {
		return TagFirst
	}
	return TagMiddle
}

// Chunk is one finished capture segment ready for delivery: the encoded
// audio payload plus the metadata the backend needs to file it.
type Chunk struct {
	SessionID string // Owning session, issued by the backend.
	Sequence  int    // Zero-based, unique within a session, no gaps.
	Tag       Tag    // Positional tag derived from Sequence.
	Data      []byte // Encoded audio (WebM/Opus).
}

// Filename returns the deterministic upload filename for this chunk.
func (c Chunk) Filename() string {
	return fmt.Sprintf("chunk%d.webm", c.Sequence)
}

// String returns a human-readable representation for diagnostics.
func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d (%s, %s)", c.Sequence, c.Tag, format.Size(int64(len(c.Data))))
}

// Dispatcher receives finished chunks from the recording cycle.
// Dispatch must not block: the controller hands a chunk off and immediately
// opens the next segment, never waiting for delivery to complete.
type Dispatcher interface {
	Dispatch(chunk Chunk)
}

// EmptySegmentPolicy decides what happens to a segment that produced no
// audio data (e.g. a capture unit that flushed zero bytes).
type EmptySegmentPolicy int

const (
	// EmptyDrop discards empty segments. The sequence number is neither
	// consumed nor incremented, so delivered chunks stay gap-free.
	EmptyDrop EmptySegmentPolicy = iota

	// EmptyDeliver delivers empty segments like any other chunk, keeping
	// one chunk per segment of wall-clock coverage.
	EmptyDeliver
)

// String returns the string representation of the policy.
func (p EmptySegmentPolicy) String() string {
	switch p {
	case EmptyDrop:
		return "drop"
	case EmptyDeliver:
		return "deliver"
	default:
		return fmt.Sprintf("EmptySegmentPolicy(%d)", int(p))
	}
}
