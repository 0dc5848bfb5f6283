package recv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaoguangleo/spead2/recv/ringbuf"
)

func newTestWindow(t *testing.T, width int) (*window, *ringbuf.Ring[*Chunk], *ringbuf.Ring[*Chunk]) {
	t.Helper()
	dataRing := ringbuf.NewRing[*Chunk](width + 2)
	freeRing := ringbuf.NewRing[*Chunk](width + 2)
	for i := 0; i < width+2; i++ {
		require.True(t, freeRing.TryPush(&Chunk{Present: make([]byte, 4)}))
	}
	w := newWindow(width, dataRing, freeRing)
	require.NoError(t, w.init(context.Background()))
	return w, dataRing, freeRing
}

func TestWindowInitAssignsContiguousIDs(t *testing.T) {
	w, _, _ := newTestWindow(t, 4)
	for id := int64(0); id < 4; id++ {
		assert.Equal(t, inWindow, w.locate(id))
		assert.Equal(t, id, w.chunkAt(id).ChunkID)
	}
	assert.Equal(t, tooNew, w.locate(4))
	assert.Equal(t, tooOld, w.locate(-1))
}

func TestWindowAdvanceHeadFlushesInOrder(t *testing.T) {
	w, dataRing, _ := newTestWindow(t, 4)
	require.NoError(t, w.advanceHead(context.Background(), 2, Lossless))

	for _, want := range []int64{0, 1} {
		c, err := dataRing.Pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, c.ChunkID)
	}
	assert.Equal(t, int64(2), w.headID())
	assert.Equal(t, inWindow, w.locate(5))
	assert.Equal(t, tooOld, w.locate(1))
}

// Chunks emitted on the data ring must have strictly increasing chunk IDs.
func TestWindowFlushAllMonotonic(t *testing.T) {
	w, dataRing, _ := newTestWindow(t, 4)
	require.NoError(t, w.flushAll(context.Background()))

	var last int64 = -1
	for i := 0; i < 4; i++ {
		c, err := dataRing.Pop(context.Background())
		require.NoError(t, err)
		assert.Greater(t, c.ChunkID, last)
		last = c.ChunkID
	}
}

func TestWindowAdvanceLossyLeavesHoleInsteadOfBlocking(t *testing.T) {
	dataRing := ringbuf.NewRing[*Chunk](8)
	freeRing := ringbuf.NewRing[*Chunk](8)
	for i := 0; i < 4; i++ {
		freeRing.TryPush(&Chunk{Present: make([]byte, 4)})
	}
	w := newWindow(4, dataRing, freeRing)
	require.NoError(t, w.init(context.Background()))
	// free ring now empty; advancing head needs 2 replacements but none available.
	require.NoError(t, w.advanceHead(context.Background(), 2, Lossy))
	assert.Nil(t, w.chunkAt(4))
	assert.Nil(t, w.chunkAt(5))
}
