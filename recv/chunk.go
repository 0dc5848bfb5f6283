package recv

import "github.com/shaoguangleo/spead2/alloc"

// Chunk is the consumer-visible container for a contiguous range of heaps
// sharing one chunk_id, spec.md §3. Present[i]==1 iff heap slot i has been
// fully written; Extra is the optional second buffer described in
// SPEC_FULL §10 (per-heap metadata alongside payload), sized by NewChunk's
// extraSize argument.
type Chunk struct {
	ChunkID int64
	Data    []byte
	Present []byte
	Extra   []byte

	// UserHandle is opaque caller state threaded through unmodified;
	// the engine never reads or writes it.
	UserHandle any

	dataBuf    alloc.Buffer
	presentBuf alloc.Buffer
	extraBuf   alloc.Buffer
}

// Release returns any allocator-owned buffers backing the chunk. Nothing in
// recv calls it: a chunk's buffers stay allocated until its owner does.
func (c *Chunk) Release() {
	c.dataBuf.Release()
	c.presentBuf.Release()
	c.extraBuf.Release()
}

// NewChunk allocates a Chunk's Data/Present/Extra buffers through the
// AllocatorIface named in spec.md §6, rather than a caller reaching for
// make([]byte, n) directly -- this is the path that lets an operator swap in
// alloc.MmapAllocator (huge pages, mlock) for a deployment's chunk pool
// without touching recv at all. extraSize of 0 leaves Extra nil.
func NewChunk(a alloc.Allocator, heapsPerChunk, heapPayloadSize, extraSize int) (*Chunk, error) {
	dataBuf, err := a.Allocate(heapsPerChunk * heapPayloadSize)
	if err != nil {
		return nil, err
	}
	presentBuf, err := a.Allocate(heapsPerChunk)
	if err != nil {
		dataBuf.Release()
		return nil, err
	}
	c := &Chunk{
		Data:       dataBuf.Bytes,
		Present:    presentBuf.Bytes,
		dataBuf:    dataBuf,
		presentBuf: presentBuf,
	}
	c.ResetPresent()
	if extraSize > 0 {
		extraBuf, err := a.Allocate(extraSize)
		if err != nil {
			dataBuf.Release()
			presentBuf.Release()
			return nil, err
		}
		c.Extra = extraBuf.Bytes
		c.extraBuf = extraBuf
	}
	return c, nil
}

// ResetPresent zeroes the present array, leaving Data and Extra untouched --
// the caller's placement contract guarantees stale payload bytes behind a
// zero present bit are never read as valid.
func (c *Chunk) ResetPresent() {
	for i := range c.Present {
		c.Present[i] = 0
	}
}
