package recv

import (
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/shaoguangleo/spead2/cmn"
	"github.com/shaoguangleo/spead2/wire"
)

// EvictionMode governs what happens when a too-new heap needs a chunk_id
// beyond the window and the free ring is empty.
type EvictionMode int

const (
	// Lossless blocks ingest until a free chunk arrives or stop is signalled.
	Lossless EvictionMode = iota
	// Lossy drops the too-new heap instead of blocking.
	Lossy
)

func (m EvictionMode) String() string {
	if m == Lossy {
		return "lossy"
	}
	return "lossless"
}

// ChunkStreamConfig configures one Stream.
type ChunkStreamConfig struct {
	Items     []wire.ItemID
	MaxChunks uint32 // >= 1
	MaxHeaps  uint32 // default 4, live-heap table capacity

	Place     PlaceFunc     // exactly one of Place / PlaceMany is set
	PlaceMany PlaceManyFunc

	HeapAddressBits uint // wire.Config.HeapAddressBits, default 40
	ExtraSize       int  // > 0 sets PlaceRequest.HasExtra; Chunk.Extra itself is sized by NewChunk
}

// ChunkStreamGroupConfig configures a Group: the shared window width and
// the policy applied when ingest outruns the free ring.
type ChunkStreamGroupConfig struct {
	MaxChunks    uint32
	EvictionMode EvictionMode

	HeapsPerChunk   int
	HeapPayloadSize int

	DataRingSize int
	FreeRingSize int
}

// StreamConfigFromCmn fills in the fields of cfg left at their zero value:
// MaxHeaps from the process-wide cmn.Config, HeapAddressBits from
// wire.DefaultHeapAddressBits.
func StreamConfigFromCmn(c *cmn.Config, cfg ChunkStreamConfig) ChunkStreamConfig {
	if cfg.MaxHeaps == 0 {
		cfg.MaxHeaps = uint32(c.LiveHeap.MaxHeaps)
	}
	if cfg.HeapAddressBits == 0 {
		cfg.HeapAddressBits = wire.DefaultHeapAddressBits
	}
	return cfg
}

// GroupConfigFromCmn fills in a ChunkStreamGroupConfig's ring sizes and
// window width from the process-wide cmn.Config, leaving any field the
// caller already set untouched.
func GroupConfigFromCmn(c *cmn.Config, cfg ChunkStreamGroupConfig) ChunkStreamGroupConfig {
	if cfg.MaxChunks == 0 {
		cfg.MaxChunks = uint32(c.Window.MaxChunks)
	}
	if cfg.DataRingSize == 0 {
		cfg.DataRingSize = c.Ring.DataRingSize
	}
	if cfg.FreeRingSize == 0 {
		cfg.FreeRingSize = c.Ring.FreeRingSize
	}
	return cfg
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// groupConfigDoc is the on-disk shape for ChunkStreamGroupConfig -- kept
// separate from the struct so the wire JSON stays stable even if internal
// field names change.
type groupConfigDoc struct {
	MaxChunks       uint32 `json:"max_chunks"`
	EvictionMode    string `json:"eviction_mode"`
	HeapsPerChunk   int    `json:"heaps_per_chunk"`
	HeapPayloadSize int    `json:"heap_payload_size"`
	DataRingSize    int    `json:"data_ring_size"`
	FreeRingSize    int    `json:"free_ring_size"`
}

// LoadGroupConfig reads a ChunkStreamGroupConfig from a JSON file.
func LoadGroupConfig(path string) (ChunkStreamGroupConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ChunkStreamGroupConfig{}, errors.Wrap(err, "recv: read group config")
	}
	var doc groupConfigDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return ChunkStreamGroupConfig{}, errors.Wrap(err, "recv: parse group config")
	}
	cfg := ChunkStreamGroupConfig{
		MaxChunks:       doc.MaxChunks,
		HeapsPerChunk:   doc.HeapsPerChunk,
		HeapPayloadSize: doc.HeapPayloadSize,
		DataRingSize:    doc.DataRingSize,
		FreeRingSize:    doc.FreeRingSize,
	}
	if doc.EvictionMode == "lossy" {
		cfg.EvictionMode = Lossy
	} else {
		cfg.EvictionMode = Lossless
	}
	return cfg, nil
}

// SaveGroupConfig writes cfg to path as JSON.
func SaveGroupConfig(path string, cfg ChunkStreamGroupConfig) error {
	doc := groupConfigDoc{
		MaxChunks:       cfg.MaxChunks,
		EvictionMode:    cfg.EvictionMode.String(),
		HeapsPerChunk:   cfg.HeapsPerChunk,
		HeapPayloadSize: cfg.HeapPayloadSize,
		DataRingSize:    cfg.DataRingSize,
		FreeRingSize:    cfg.FreeRingSize,
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "recv: marshal group config")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrap(err, "recv: write group config")
	}
	return nil
}
