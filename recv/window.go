package recv

import (
	"context"
	"sync"

	"github.com/shaoguangleo/spead2/cmn/debug"
	"github.com/shaoguangleo/spead2/recv/ringbuf"
)

// windowStatus classifies a chunk_id relative to the current window.
type windowStatus int

const (
	inWindow windowStatus = iota
	tooOld
	tooNew
)

// window is C3/C6's shared state: a sliding set of up to width live chunks
// with contiguous IDs [head, head+width) (a Lossy advance can leave holes).
// Head advancement is serialised by mu -- this is "the group mutex" referred
// to in spec.md §4.6 and §5. Payload writes happen outside this lock,
// directly on the Chunk.Data slice the caller already holds a pointer to;
// Present writes are not lock-free: they take mu, through withChunk.
type window struct {
	mu    sync.Mutex
	head  int64
	width int
	slots []*Chunk // slots[id % width], valid for id in [head, head+width)

	dataRing *ringbuf.Ring[*Chunk]
	freeRing *ringbuf.Ring[*Chunk]

	// onEmit, if set, is called once per chunk successfully pushed onto
	// dataRing -- rstats' chunks_emitted counter.
	onEmit func(*Chunk)
}

func newWindow(width int, dataRing, freeRing *ringbuf.Ring[*Chunk]) *window {
	return &window{
		width:    width,
		slots:    make([]*Chunk, width),
		dataRing: dataRing,
		freeRing: freeRing,
	}
}

func (w *window) index(id int64) int {
	m := id % int64(w.width)
	if m < 0 {
		m += int64(w.width)
	}
	return int(m)
}

// init pulls `width` fresh chunks from the free ring and assigns them IDs
// [0, width), establishing the initial window. Called once, before any
// stream starts ingesting.
func (w *window) init(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id := int64(0); id < int64(w.width); id++ {
		c, err := w.freeRing.Pop(ctx)
		if err != nil {
			return err
		}
		c.ChunkID = id
		c.ResetPresent()
		w.slots[w.index(id)] = c
	}
	return nil
}

// locate classifies id against the current window without mutating state.
func (w *window) locate(id int64) windowStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.locateLocked(id)
}

func (w *window) locateLocked(id int64) windowStatus {
	switch {
	case id < w.head:
		return tooOld
	case id >= w.head+int64(w.width):
		return tooNew
	default:
		return inWindow
	}
}

// chunkAt returns the live chunk for id, which must already be in-window.
func (w *window) chunkAt(id int64) *Chunk {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.slots[w.index(id)]
}

// withChunk runs fn against the chunk at id while it is still guaranteed to
// be the live, in-window chunk for that ID. This is used for Present-bit
// writes that must not race a concurrent advanceHead evicting the same
// chunk out from under the caller.
func (w *window) withChunk(id int64, fn func(*Chunk)) windowStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.locateLocked(id)
	if st != inWindow {
		return st
	}
	fn(w.slots[w.index(id)])
	return inWindow
}

// advanceHead flushes every chunk with id < newHead to the data ring in ID
// order, then refills the vacated slots from the free ring so the window
// again holds exactly width contiguous chunks [newHead, newHead+width).
// Refilling blocks (Lossless) or is attempted non-blockingly and skipped
// (Lossy, leaving a hole that a later caller must retry) depending on mode.
func (w *window) advanceHead(ctx context.Context, newHead int64, mode EvictionMode) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if newHead <= w.head {
		return nil
	}

	for id := w.head; id < newHead; id++ {
		idx := w.index(id)
		if c := w.slots[idx]; c != nil {
			w.slots[idx] = nil
			if err := w.dataRing.Push(ctx, c); err != nil {
				return err
			}
			if w.onEmit != nil {
				w.onEmit(c)
			}
		}
	}
	w.head = newHead

	for id := w.head; id < w.head+int64(w.width); id++ {
		idx := w.index(id)
		if w.slots[idx] != nil {
			continue
		}
		if mode == Lossy {
			c, ok := w.freeRing.TryPop()
			if !ok {
				continue // hole left; only a later advanceHead can fill it
			}
			c.ChunkID = id
			c.ResetPresent()
			w.slots[idx] = c
			continue
		}
		c, err := w.freeRing.Pop(ctx)
		if err != nil {
			return err
		}
		c.ChunkID = id
		c.ResetPresent()
		w.slots[idx] = c
	}
	if mode == Lossless {
		for id := w.head; id < w.head+int64(w.width); id++ {
			debug.Assert(w.slots[w.index(id)] != nil, "lossless advanceHead must refill every slot")
		}
	}
	return nil
}

// flushAll emits every live chunk in ID order, used on stop (spec.md §4.5).
func (w *window) flushAll(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id := w.head; id < w.head+int64(w.width); id++ {
		idx := w.index(id)
		if c := w.slots[idx]; c != nil {
			w.slots[idx] = nil
			if err := w.dataRing.Push(ctx, c); err != nil {
				return err
			}
			if w.onEmit != nil {
				w.onEmit(c)
			}
		}
	}
	return nil
}

func (w *window) headID() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.head
}
