// Package recv implements the receive-side SPEAD reassembly engine: the
// live-heap table, chunk window, placement bridge, per-stream state
// machine, and the chunk stream group that coordinates them (C2-C6).
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package recv

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/shaoguangleo/spead2/cmn/cos"
	"github.com/shaoguangleo/spead2/recv/ringbuf"
	"github.com/shaoguangleo/spead2/recv/rstats"
)

// Group is C6: it coordinates N Streams sharing one chunk window and one
// pair of rings. Grounded in the teacher's transport/bundle.Streams
// (several per-destination flows behind one shared, swappable table) and
// bundle.DataMover (a single Close/Abort driving every owned flow).
type Group struct {
	ID  string
	cfg ChunkStreamGroupConfig
	log Logger

	win      *window
	dataRing *ringbuf.Ring[*Chunk]
	freeRing *ringbuf.Ring[*Chunk]

	streams []*Stream
	stats   *rstats.Registry

	// Exec runs each stream's ingest loop. Defaults to DefaultExecutor
	// (one goroutine per stream) if left nil; tests may substitute one
	// that runs synchronously or on a bounded pool.
	Exec Executor

	stopCh cos.StopCh
	errs   cos.Errs
}

// NewGroup builds a Group from cfg. The caller must push at least
// cfg.MaxChunks chunks onto the free ring (AddFreeChunk) before Start.
func NewGroup(cfg ChunkStreamGroupConfig, log Logger) *Group {
	if log == nil {
		log = DefaultLogger()
	}
	id := uuid.NewString()
	dataRing := ringbuf.NewRing[*Chunk](maxInt(cfg.DataRingSize, 1))
	freeRing := ringbuf.NewRing[*Chunk](maxInt(cfg.FreeRingSize, 1))
	g := &Group{
		ID:       id,
		cfg:      cfg,
		log:      log,
		win:      newWindow(int(cfg.MaxChunks), dataRing, freeRing),
		dataRing: dataRing,
		freeRing: freeRing,
		stats:    rstats.New("spead2", "group", map[string]string{"group": id}, nil),
	}
	g.win.onEmit = func(*Chunk) { g.stats.ChunksEmitted.Inc() }
	g.stopCh.Init()
	return g
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// AddFreeChunk gives the group ownership of c, available to be pulled into
// the window by Start/advanceHead. Mirrors original_source's
// chunk_stream_group::add_free_chunk.
func (g *Group) AddFreeChunk(ctx context.Context, c *Chunk) error {
	return g.freeRing.Push(ctx, c)
}

// AddStream registers a new Stream bound to src with cfg, returning it so
// the caller can inspect its stats/state later. Must be called before
// Start.
func (g *Group) AddStream(cfg ChunkStreamConfig, src DatagramSource) *Stream {
	id := len(g.streams)
	streamStats := rstats.New("spead2", "stream", map[string]string{"group": g.ID, "stream": strconv.Itoa(id)}, nil)
	s := newStream(id, cfg, src, g, g.log, streamStats)
	g.streams = append(g.streams, s)
	return s
}

// DataRing exposes the consumer-facing ring: chunks flow out here in
// strictly increasing chunk_id order.
func (g *Group) DataRing() *ringbuf.Ring[*Chunk] { return g.dataRing }

// FreeRing is where the consumer returns chunks once done with them.
func (g *Group) FreeRing() *ringbuf.Ring[*Chunk] { return g.freeRing }

// Streams returns every registered stream, in AddStream order.
func (g *Group) Streams() []*Stream { return g.streams }

// Stats returns a point-in-time snapshot of the group-wide counters: the
// group's own chunks_emitted plus every stream's counters summed.
func (g *Group) Stats() rstats.Snapshot {
	snap := g.stats.Snapshot()
	for _, s := range g.streams {
		ss := s.stats.Snapshot()
		snap.BadPackets += ss.BadPackets
		snap.RejectedHeaps += ss.RejectedHeaps
		snap.TooOldHeaps += ss.TooOldHeaps
		snap.TooNewHeaps += ss.TooNewHeaps
		snap.HeapsCompleted += ss.HeapsCompleted
		snap.HeapsIncompleteAtEviction += ss.HeapsIncompleteAtEviction
		snap.ChunksEmitted += ss.ChunksEmitted
	}
	return snap
}

// Errs returns every distinct fatal error raised by a stream during the
// most recent (or still-running) Start, beyond just the first one Start
// itself returns -- useful for logging every stream's cause of death after
// a group-wide stop, not just whichever happened to be first.
func (g *Group) Errs() (int, error) { return g.errs.JoinErr() }

// Start initializes the chunk window (pulling cfg.MaxChunks chunks off the
// free ring) and runs every registered stream concurrently, each dispatched
// through g.Exec (DefaultExecutor if unset) per spec.md §5's "each stream is
// driven by an I/O executor, configurable". It blocks until every stream has
// stopped -- by explicit Stop, end-of-stream, or a fatal source error --
// then flushes the window and stops both rings. Returns the first stream's
// fatal error, if any; Errs reports the full set.
func (g *Group) Start(ctx context.Context) error {
	if err := g.win.init(ctx); err != nil {
		return err
	}
	g.log.Infof("group %s: starting %d stream(s)", g.ID, len(g.streams))

	exec := g.Exec
	if exec == nil {
		exec = DefaultExecutor()
	}

	var (
		wg        sync.WaitGroup
		firstOnce sync.Once
		firstErr  error
	)
	for _, s := range g.streams {
		s := s
		wg.Add(1)
		exec.Go(func() {
			defer wg.Done()
			if err := s.run(ctx); err != nil {
				g.errs.Add(err)
				firstOnce.Do(func() { firstErr = err })
			}
		})
	}

	go func() {
		<-g.stopCh.Listen()
		for _, s := range g.streams {
			s.Stop()
		}
	}()

	wg.Wait()

	_ = g.win.flushAll(context.Background())
	g.dataRing.Stop()
	g.freeRing.Stop()

	if firstErr != nil {
		g.log.Errorf("group %s: stopped with error: %v", g.ID, firstErr)
	} else {
		g.log.Infof("group %s: stopped", g.ID)
	}
	return firstErr
}

// Stop ends every stream and, once Start's goroutines observe that, flushes
// the window and stops both rings. Idempotent and safe from any goroutine
// (spec.md §5 "Cancellation").
func (g *Group) Stop() {
	g.log.Infof("group %s: stop requested", g.ID)
	g.stopCh.Close()
}

// resolveChunk implements spec.md §4.6's cross-stream alignment: returns the
// live chunk for chunkID, advancing the window if chunkID is too new (under
// Lossless this may block until a free chunk arrives or the group stops). A
// Lossy advance can leave a hole in the window (no free chunk to refill a
// vacated slot, window.go's advanceHead) -- that hole is reported as tooNew
// rather than handed back as a nil *Chunk, since to the caller it is
// indistinguishable from "this chunk_id has no backing chunk right now".
func (g *Group) resolveChunk(ctx context.Context, chunkID int64) (*Chunk, windowStatus, error) {
	status := g.win.locate(chunkID)
	switch status {
	case inWindow:
		if c := g.win.chunkAt(chunkID); c != nil {
			return c, inWindow, nil
		}
		return nil, tooNew, nil
	case tooOld:
		return nil, tooOld, nil
	default: // tooNew
		newHead := chunkID - int64(g.cfg.MaxChunks) + 1
		if err := g.win.advanceHead(ctx, newHead, g.cfg.EvictionMode); err != nil {
			return nil, tooNew, err
		}
		status = g.win.locate(chunkID)
		if status != inWindow {
			return nil, status, nil
		}
		if c := g.win.chunkAt(chunkID); c != nil {
			return c, inWindow, nil
		}
		return nil, tooNew, nil
	}
}

// markPresent sets present[heapIndex] for chunkID under the window mutex.
// It counts nothing itself: chunks_emitted is counted by the window's onEmit
// hook whenever advanceHead or flushAll pushes a chunk to the data ring (see
// window.go). c is nil when a Lossy hole raced this call
// between resolveChunk's check and here; nothing to mark in that case.
func (g *Group) markPresent(chunkID, heapIndex int64) {
	g.win.withChunk(chunkID, func(c *Chunk) {
		if c == nil {
			return
		}
		if heapIndex >= 0 && int(heapIndex) < len(c.Present) {
			c.Present[heapIndex] = 1
		}
	})
}
