package recv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaoguangleo/spead2/cmn"
)

func TestStreamConfigFromCmnFillsZeroFields(t *testing.T) {
	c := cmn.DefaultConfig()
	cfg := StreamConfigFromCmn(c, ChunkStreamConfig{})
	assert.Equal(t, uint32(c.LiveHeap.MaxHeaps), cfg.MaxHeaps)
	assert.NotZero(t, cfg.HeapAddressBits)

	// explicit values are left untouched.
	cfg2 := StreamConfigFromCmn(c, ChunkStreamConfig{MaxHeaps: 99, HeapAddressBits: 24})
	assert.Equal(t, uint32(99), cfg2.MaxHeaps)
	assert.Equal(t, uint(24), cfg2.HeapAddressBits)
}

func TestGroupConfigFromCmnFillsZeroFields(t *testing.T) {
	c := cmn.DefaultConfig()
	cfg := GroupConfigFromCmn(c, ChunkStreamGroupConfig{})
	assert.Equal(t, uint32(c.Window.MaxChunks), cfg.MaxChunks)
	assert.Equal(t, c.Ring.DataRingSize, cfg.DataRingSize)
	assert.Equal(t, c.Ring.FreeRingSize, cfg.FreeRingSize)

	cfg2 := GroupConfigFromCmn(c, ChunkStreamGroupConfig{MaxChunks: 7})
	assert.Equal(t, uint32(7), cfg2.MaxChunks)
}

func TestSaveAndLoadGroupConfig(t *testing.T) {
	cfg := ChunkStreamGroupConfig{
		MaxChunks: 4, EvictionMode: Lossy,
		HeapsPerChunk: 64, HeapPayloadSize: 65536,
		DataRingSize: 8, FreeRingSize: 8,
	}
	path := filepath.Join(t.TempDir(), "group.json")
	require.NoError(t, SaveGroupConfig(path, cfg))

	_, err := os.Stat(path)
	require.NoError(t, err)

	got, err := LoadGroupConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
