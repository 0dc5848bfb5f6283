// Package cmn provides the receiver's configuration: sizing knobs for the
// live-heap table, chunk window, and ring buffers, plus a hot-reloadable
// global handle in the style of a read-mostly config singleton.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"time"

	ratomic "sync/atomic"
)

// Config is the full set of tunables for one receive engine instance. Zero
// value is invalid; callers start from DefaultConfig and override.
type Config struct {
	Log struct {
		Level   int
		Modules int // bitmask of module flags, gates FastV
	}

	// LiveHeap is C2: the bounded cache of in-progress heaps.
	LiveHeap struct {
		MaxHeaps int // default 4, FIFO-evicted once exceeded
	}

	// Window is C3: the sliding, strictly-ordered chunk window.
	Window struct {
		MaxChunks int
	}

	// Ring is C7: data/free ring capacities.
	Ring struct {
		DataRingSize int
		FreeRingSize int
	}

	// Socket is consumed by udpsource.Source.
	Socket struct {
		RecvBufferSize int           // SO_RCVBUF, bytes
		ReadTimeout    time.Duration // 0 disables
	}

	Heap struct {
		MaxPayloadSize int // largest single-packet payload, bytes
	}
}

// DefaultConfig mirrors the concrete defaults spec'd for the receive engine:
// 4 live heaps, a modest chunk window, and a 1 MiB socket buffer.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.LiveHeap.MaxHeaps = 4
	cfg.Window.MaxChunks = 4
	cfg.Ring.DataRingSize = 8
	cfg.Ring.FreeRingSize = 8
	cfg.Socket.RecvBufferSize = 1 << 20 // 1 MiB
	cfg.Heap.MaxPayloadSize = 1 << 16   // 65536 B
	return cfg
}

var gco ratomic.Pointer[Config]

// Get returns the current global config. Safe to call concurrently with Set;
// the returned pointer is stable (never mutated in place).
func Get() *Config {
	cfg := gco.Load()
	if cfg == nil {
		cfg = DefaultConfig()
		gco.CompareAndSwap(nil, cfg)
		cfg = gco.Load()
	}
	return cfg
}

// Set installs cfg as the global config and refreshes the read-mostly
// fast-path fields derived from it (Rom).
func Set(cfg *Config) {
	gco.Store(cfg)
	Rom.Set(cfg)
}
