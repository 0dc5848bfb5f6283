package recv

// LiveHeap is the mutable reassembly state for one heap_cnt. Created on the
// heap's first packet; destroyed on completion, eviction, or stream stop.
type LiveHeap struct {
	HeapCnt       uint64
	Length        int
	ReceivedBytes int
	Placed        bool
	Rejected      bool
	ChunkID       int64
	HeapIndex     int64
	HeapOffset    int64

	// Bitmap is a slot for per-byte-range arrival tracking. The stream never
	// allocates it, so it stays nil: completion is judged by ReceivedBytes
	// alone, and duplicate packets are not detected.
	Bitmap []byte
}

// liveHeapTable is a small map keyed by heap_cnt, sized maxHeaps, with FIFO
// eviction once full.
type liveHeapTable struct {
	maxHeaps int
	order    []uint64 // FIFO of heap_cnt, oldest first
	heaps    map[uint64]*LiveHeap
}

func newLiveHeapTable(maxHeaps int) *liveHeapTable {
	if maxHeaps < 1 {
		maxHeaps = 4
	}
	return &liveHeapTable{
		maxHeaps: maxHeaps,
		order:    make([]uint64, 0, maxHeaps),
		heaps:    make(map[uint64]*LiveHeap, maxHeaps),
	}
}

// lookup returns the existing entry for heapCnt, if any.
func (t *liveHeapTable) lookup(heapCnt uint64) (*LiveHeap, bool) {
	lh, ok := t.heaps[heapCnt]
	return lh, ok
}

// getOrCreate returns the existing entry, inserts a fresh one if below
// capacity, or evicts the oldest and reports it via onEvict before
// inserting the new one. created is true only when a new LiveHeap was just
// allocated (first packet of this heap_cnt).
func (t *liveHeapTable) getOrCreate(heapCnt uint64, onEvict func(*LiveHeap)) (lh *LiveHeap, created bool) {
	if lh, ok := t.heaps[heapCnt]; ok {
		return lh, false
	}
	if len(t.order) >= t.maxHeaps {
		oldestCnt := t.order[0]
		t.order = t.order[1:]
		evicted := t.heaps[oldestCnt]
		delete(t.heaps, oldestCnt)
		if onEvict != nil && evicted != nil {
			onEvict(evicted)
		}
	}
	lh = &LiveHeap{HeapCnt: heapCnt}
	t.heaps[heapCnt] = lh
	t.order = append(t.order, heapCnt)
	return lh, true
}

// remove deletes heapCnt from the table (completion or rejection), keeping
// the FIFO order slice consistent.
func (t *liveHeapTable) remove(heapCnt uint64) {
	if _, ok := t.heaps[heapCnt]; !ok {
		return
	}
	delete(t.heaps, heapCnt)
	for i, c := range t.order {
		if c == heapCnt {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *liveHeapTable) len() int { return len(t.heaps) }

// drain empties the table, invoking onDrain for every still-live heap --
// used on stream stop.
func (t *liveHeapTable) drain(onDrain func(*LiveHeap)) {
	for _, cnt := range t.order {
		if onDrain != nil {
			onDrain(t.heaps[cnt])
		}
	}
	t.order = t.order[:0]
	t.heaps = make(map[uint64]*LiveHeap, t.maxHeaps)
}
