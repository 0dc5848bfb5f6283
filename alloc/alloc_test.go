package alloc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaoguangleo/spead2/alloc"
)

func TestHeapAllocator(t *testing.T) {
	a := &alloc.HeapAllocator{Prefault: true}
	buf, err := a.Allocate(1 << 16)
	require.NoError(t, err)
	assert.Len(t, buf.Bytes, 1<<16)

	// Release is idempotent.
	buf.Release()
	buf.Release()
}

func TestMmapAllocatorLinux(t *testing.T) {
	a := &alloc.MmapAllocator{Populate: true}
	buf, err := a.Allocate(4096)
	if err != nil {
		t.Skipf("mmap allocator unavailable in this environment: %v", err)
	}
	assert.Len(t, buf.Bytes, 4096)
	buf.Release()
	buf.Release()
}
