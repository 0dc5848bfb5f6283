package recv

import "github.com/shaoguangleo/spead2/wire"

// PlaceRequest is the input to the user placement callback. ItemValues
// holds the subset of a heap's item pointers the stream config selected
// (ChunkStreamConfig.Items; every pointer when Items is empty); the callback
// must not retain this slice across the call.
type PlaceRequest struct {
	HeapCnt     uint64
	ItemValues  []wire.ItemPointer
	PayloadSize int
	HeapLength  int
	HasExtra    bool
}

// PlaceResult is the callback's output. ChunkID == RejectChunkID means
// "reject this heap": all subsequent packets for the heap_cnt are dropped
// cheaply and the heap never appears in any chunk.
type PlaceResult struct {
	ChunkID    int64
	HeapIndex  int64
	HeapOffset int64
}

// RejectChunkID is the sentinel PlaceResult.ChunkID meaning "reject".
const RejectChunkID int64 = -1

// PlaceFunc is invoked exactly once per heap_cnt, on the first packet that
// permits resolution -- as soon as possible, never deferred past the first
// payload copy.
type PlaceFunc func(req PlaceRequest) PlaceResult

// PlaceManyFunc is the batched placement discipline: fills results for
// every entry in reqs, one crossing for the whole batch. Per-heap ordering
// of the *decisions* must still be observable by the caller even though the
// call itself is batched.
type PlaceManyFunc func(reqs []PlaceRequest) []PlaceResult

// FixedSizePlacer returns a PlaceFunc that rejects any heap whose HeapLength
// does not equal heapPayloadSize, then delegates placement of accepted
// heaps to next. Packaged as a reusable wrapper for the common fixed-size
// heap layout instead of requiring every caller to repeat the check.
func FixedSizePlacer(heapPayloadSize int, next PlaceFunc) PlaceFunc {
	return func(req PlaceRequest) PlaceResult {
		if req.HeapLength != heapPayloadSize {
			return PlaceResult{ChunkID: RejectChunkID}
		}
		return next(req)
	}
}
