package wire

import "errors"

// Decode errors are all non-fatal: the caller increments a counter and drops
// the packet. None of these are ever returned to a consumer of the receive
// engine -- see recv/errors.go for the kinds that do propagate.
var (
	ErrBadMagic             = errors.New("wire: bad magic byte")
	ErrBadVersion           = errors.New("wire: unsupported SPEAD version")
	ErrTruncated            = errors.New("wire: datagram shorter than its declared header/items")
	ErrPointerWidthMismatch = errors.New("wire: item pointer width does not match stream configuration")
	ErrFramingViolation     = errors.New("wire: payload_offset + payload_length exceeds heap_length")
)
