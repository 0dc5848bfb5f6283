package recv

import (
	"context"
	"sync"
	"time"

	"github.com/shaoguangleo/spead2/wire"
)

// fakeSource replays a fixed, pre-built sequence of raw datagrams in order;
// used by every scenario test (S1-S6) instead of a real socket.
type fakeSource struct {
	mu   sync.Mutex
	buf  [][]byte
	i    int
	done bool
}

func newFakeSource(datagrams [][]byte) *fakeSource {
	return &fakeSource{buf: datagrams}
}

func (f *fakeSource) Poll(ctx context.Context) ([]byte, time.Time, error) {
	f.mu.Lock()
	if f.i < len(f.buf) {
		b := f.buf[f.i]
		f.i++
		f.mu.Unlock()
		return b, time.Now(), nil
	}
	f.done = true
	f.mu.Unlock()

	// Nothing left to read; block like a real socket until cancelled.
	<-ctx.Done()
	return nil, time.Time{}, ctx.Err()
}

func (f *fakeSource) Close() error { return nil }

// heapPacket builds a single-packet heap: heap_cnt, full heap_length ==
// payload length, payload_offset 0.
func heapPacket(t interface{ Helper() }, cfg wire.Config, heapCnt uint64, payload []byte) []byte {
	if t != nil {
		t.Helper()
	}
	pkt := wire.Packet{
		HeapCnt:       heapCnt,
		HeapLength:    uint64(len(payload)),
		HasHeapLength: true,
		PayloadOffset: 0,
		PayloadLength: uint64(len(payload)),
		Items: []wire.ItemPointer{
			{ID: wire.HeapCnt, Value: heapCnt, IsImmed: true},
			{ID: wire.HeapLength, Value: uint64(len(payload)), IsImmed: true},
			{ID: wire.PayloadOffset, Value: 0, IsImmed: true},
			{ID: wire.PayloadLength, Value: uint64(len(payload)), IsImmed: true},
		},
		Payload: payload,
	}
	return wire.Encode(pkt, cfg)
}

func eosPacket(cfg wire.Config, heapCnt uint64) []byte {
	pkt := wire.Packet{
		HeapCnt:       heapCnt,
		HasHeapLength: false,
		Items: []wire.ItemPointer{
			{ID: wire.HeapCnt, Value: heapCnt, IsImmed: true},
			{ID: wire.StreamCtrl, Value: wire.StreamCtrlEOS, IsImmed: true},
		},
	}
	return wire.Encode(pkt, cfg)
}
