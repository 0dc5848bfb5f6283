package recv

import (
	"github.com/pkg/errors"

	"github.com/shaoguangleo/spead2/recv/ringbuf"
)

// Per-packet error kinds (Malformed, Rejected, TooOld, TooNew) are never
// returned to a caller -- they only drive a counter in rstats. SourceFatal
// and AllocatorFailure stop the affected stream; Stopped is terminal and
// returned by ring pops after Stop().
var (
	ErrPacketMalformed      = errors.New("recv: malformed packet")
	ErrHeapPlacementRejected = errors.New("recv: placement callback rejected heap")
	ErrTooOld               = errors.New("recv: chunk_id older than window head")
	ErrTooNew               = errors.New("recv: chunk_id beyond window and ingest is lossless")
	ErrAllocatorFailure     = errors.New("recv: allocator failed to produce a chunk buffer")
	ErrStopped              = ringbuf.ErrStopped
)

// ErrSourceFatal wraps an underlying DatagramSource error that ends a
// stream. It is wrapped with github.com/pkg/errors so a stack trace survives
// to wherever StopReason() is observed.
type ErrSourceFatal struct {
	cause error
}

func NewErrSourceFatal(cause error) *ErrSourceFatal {
	return &ErrSourceFatal{cause: errors.WithStack(cause)}
}

func (e *ErrSourceFatal) Error() string { return "recv: fatal source error: " + e.cause.Error() }
func (e *ErrSourceFatal) Unwrap() error { return e.cause }
