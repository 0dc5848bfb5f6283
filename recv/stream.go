package recv

import (
	"context"
	"sync/atomic"

	"github.com/shaoguangleo/spead2/recv/rstats"
	"github.com/shaoguangleo/spead2/wire"
)

// StreamState is the C5 state machine, spec.md §4.4.
type StreamState int32

const (
	Idle StreamState = iota
	Running
	Stopping
	Stopped
)

func (s StreamState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// Stream is C5: binds one DatagramSource to the decoder and live-heap
// table, and drives the per-stream state machine. A Stream always belongs
// to a Group, which supplies the shared chunk window -- modeled on the
// teacher's streamBase living inside a bundle.Streams table.
type Stream struct {
	id     int
	cfg    ChunkStreamConfig
	src    DatagramSource
	group  *Group
	log    Logger
	stats  *rstats.Registry
	decCfg wire.Config

	heaps *liveHeapTable

	state  atomic.Int32
	cancel context.CancelFunc

	// stopReason is asynchronous per spec.md §7 (SourceFatal): buffered 1,
	// non-blocking send so the ingest loop never stalls delivering it.
	stopReason chan error
}

func newStream(id int, cfg ChunkStreamConfig, src DatagramSource, group *Group, log Logger, stats *rstats.Registry) *Stream {
	hab := cfg.HeapAddressBits
	if hab == 0 {
		hab = wire.DefaultHeapAddressBits
	}
	return &Stream{
		id:         id,
		cfg:        cfg,
		src:        src,
		group:      group,
		log:        log,
		stats:      stats,
		decCfg:     wire.Config{HeapAddressBits: hab},
		heaps:      newLiveHeapTable(int(cfg.MaxHeaps)),
		stopReason: make(chan error, 1),
	}
}

// State returns the stream's current lifecycle state.
func (s *Stream) State() StreamState { return StreamState(s.state.Load()) }

// StopReason receives the fatal error that ended the stream, if any -- the
// channel is closed-over-capacity-1, never blocks a sender.
func (s *Stream) StopReason() <-chan error { return s.stopReason }

// Stop transitions the stream toward Stopped; idempotent and safe from any
// goroutine. It cancels the stream's run context, unblocking Poll and any
// in-progress window wait.
func (s *Stream) Stop() {
	for {
		cur := StreamState(s.state.Load())
		if cur == Stopping || cur == Stopped {
			return
		}
		if s.state.CompareAndSwap(int32(cur), int32(Stopping)) {
			if s.cancel != nil {
				s.cancel()
			}
			return
		}
	}
}

// run is the per-stream ingest loop, dispatched by the owning Group's
// Executor (recv/group.go). It returns the fatal error that ended the
// stream, or nil if ended by Stop()/EOS.
func (s *Stream) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	if !s.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return nil // already stopping/stopped before it ever ran
	}

	var fatal error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		buf, _, err := s.src.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break loop // cancelled via Stop(), not a source failure
			}
			fatal = NewErrSourceFatal(err)
			s.log.Errorf("stream %d: fatal source error: %v", s.id, err)
			break loop
		}

		pkt, err := wire.Decode(buf, s.decCfg)
		if err != nil {
			s.stats.BadPackets.Inc()
			continue
		}
		if wire.IsEndOfStream(pkt) {
			break loop
		}
		if err := s.handlePacket(ctx, pkt); err != nil {
			if err == ErrStopped || ctx.Err() != nil {
				break loop // cancelled via Stop(), not a source failure
			}
			fatal = err
			s.log.Errorf("stream %d: fatal error handling packet: %v", s.id, err)
			break loop
		}
	}

	s.heaps.drain(func(lh *LiveHeap) {
		if lh.Placed && !lh.Rejected {
			s.stats.HeapsIncompleteAtEviction.Inc()
		}
	})
	s.state.Store(int32(Stopped))
	s.log.Infof("stream %d: stopped", s.id)

	if fatal != nil {
		select {
		case s.stopReason <- fatal:
		default:
		}
	}
	return fatal
}

// handlePacket implements spec.md §4.4's Running-state packet handling.
func (s *Stream) handlePacket(ctx context.Context, pkt wire.Packet) error {
	lh, created := s.heaps.getOrCreate(pkt.HeapCnt, func(evicted *LiveHeap) {
		if evicted.Placed && !evicted.Rejected {
			s.stats.HeapsIncompleteAtEviction.Inc()
		}
	})

	if lh.Rejected {
		return nil // cheap drop, spec.md §4.2 "Placement"
	}

	if created {
		if !s.place(pkt, lh) {
			return nil
		}
	}
	if !lh.Placed {
		return nil
	}

	c, status, err := s.group.resolveChunk(ctx, lh.ChunkID)
	if err != nil {
		return err
	}
	switch status {
	case tooOld:
		s.stats.TooOldHeaps.Inc()
		s.heaps.remove(pkt.HeapCnt)
		s.log.Warningf("stream %d: heap_cnt %d addressed chunk_id %d older than window head, dropped", s.id, pkt.HeapCnt, lh.ChunkID)
		return nil
	case tooNew:
		s.stats.TooNewHeaps.Inc()
		s.heaps.remove(pkt.HeapCnt)
		s.log.Warningf("stream %d: heap_cnt %d addressed chunk_id %d beyond window, dropped", s.id, pkt.HeapCnt, lh.ChunkID)
		return nil
	}

	start := int(lh.HeapOffset) + int(pkt.PayloadOffset)
	end := start + int(pkt.PayloadLength)
	if start >= 0 && end <= len(c.Data) {
		copy(c.Data[start:end], pkt.Payload)
	}
	lh.ReceivedBytes += len(pkt.Payload)

	if lh.Length > 0 && lh.ReceivedBytes >= lh.Length {
		s.group.markPresent(lh.ChunkID, lh.HeapIndex)
		s.stats.HeapsCompleted.Inc()
		s.heaps.remove(pkt.HeapCnt)
	}
	return nil
}

// place runs the placement callback exactly once for lh (spec.md §4.3),
// recording its decision on lh. Returns false if the heap was rejected.
func (s *Stream) place(pkt wire.Packet, lh *LiveHeap) bool {
	heapLength := int(pkt.HeapLength)
	if !pkt.HasHeapLength {
		heapLength = int(pkt.PayloadOffset + pkt.PayloadLength)
	}
	items := pkt.Items
	if len(s.cfg.Items) > 0 {
		items = make([]wire.ItemPointer, 0, len(s.cfg.Items))
		for _, ip := range pkt.Items {
			for _, id := range s.cfg.Items {
				if ip.ID == id {
					items = append(items, ip)
					break
				}
			}
		}
	}
	req := PlaceRequest{
		HeapCnt:     pkt.HeapCnt,
		ItemValues:  items,
		PayloadSize: int(pkt.PayloadLength),
		HeapLength:  heapLength,
		HasExtra:    s.cfg.ExtraSize > 0,
	}

	var res PlaceResult
	switch {
	case s.cfg.Place != nil:
		res = s.cfg.Place(req)
	case s.cfg.PlaceMany != nil:
		res = s.cfg.PlaceMany([]PlaceRequest{req})[0]
	default:
		res = PlaceResult{ChunkID: RejectChunkID}
	}

	if res.ChunkID == RejectChunkID {
		lh.Rejected = true
		s.stats.RejectedHeaps.Inc()
		s.log.Warningf("stream %d: heap_cnt %d rejected by placement callback", s.id, lh.HeapCnt)
		return false
	}

	lh.Placed = true
	lh.ChunkID = res.ChunkID
	lh.HeapIndex = res.HeapIndex
	lh.HeapOffset = res.HeapOffset
	lh.Length = heapLength
	return true
}
