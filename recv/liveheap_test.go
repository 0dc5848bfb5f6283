package recv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLiveHeapTableGetOrCreate(t *testing.T) {
	tbl := newLiveHeapTable(2)

	lh1, created := tbl.getOrCreate(1, nil)
	assert.True(t, created)
	assert.Equal(t, uint64(1), lh1.HeapCnt)

	again, created := tbl.getOrCreate(1, nil)
	assert.False(t, created)
	assert.Same(t, lh1, again)
}

func TestLiveHeapTableFIFOEviction(t *testing.T) {
	tbl := newLiveHeapTable(2)
	tbl.getOrCreate(1, nil)
	tbl.getOrCreate(2, nil)

	var evicted *LiveHeap
	tbl.getOrCreate(3, func(lh *LiveHeap) { evicted = lh })

	assert.NotNil(t, evicted)
	assert.Equal(t, uint64(1), evicted.HeapCnt)
	assert.Equal(t, 2, tbl.len())

	_, ok := tbl.lookup(1)
	assert.False(t, ok)
	_, ok = tbl.lookup(2)
	assert.True(t, ok)
	_, ok = tbl.lookup(3)
	assert.True(t, ok)
}

func TestLiveHeapTableRemoveAndDrain(t *testing.T) {
	tbl := newLiveHeapTable(4)
	tbl.getOrCreate(1, nil)
	tbl.getOrCreate(2, nil)
	tbl.remove(1)
	assert.Equal(t, 1, tbl.len())

	var drained []uint64
	tbl.drain(func(lh *LiveHeap) { drained = append(drained, lh.HeapCnt) })
	assert.Equal(t, []uint64{2}, drained)
	assert.Equal(t, 0, tbl.len())
}
