package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaoguangleo/spead2/wire"
)

func buildPacket(t *testing.T, heapCnt, heapLength, payloadOffset uint64, payload []byte) wire.Packet {
	t.Helper()
	return wire.Packet{
		HeapCnt:       heapCnt,
		HeapLength:    heapLength,
		HasHeapLength: true,
		PayloadOffset: payloadOffset,
		PayloadLength: uint64(len(payload)),
		Items: []wire.ItemPointer{
			{ID: wire.HeapCnt, Value: heapCnt, IsImmed: true},
			{ID: wire.HeapLength, Value: heapLength, IsImmed: true},
			{ID: wire.PayloadOffset, Value: payloadOffset, IsImmed: true},
			{ID: wire.PayloadLength, Value: uint64(len(payload)), IsImmed: true},
		},
		Payload: payload,
	}
}

// encode(decode(packet)) must equal packet for well-formed packets.
func TestRoundTrip(t *testing.T) {
	cfg := wire.DefaultConfig()
	payload := []byte("astronomy-payload-bytes")
	pkt := buildPacket(t, 42, 1024, 0, payload)

	raw := wire.Encode(pkt, cfg)
	got, err := wire.Decode(raw, cfg)
	require.NoError(t, err)

	assert.Equal(t, pkt.HeapCnt, got.HeapCnt)
	assert.Equal(t, pkt.HeapLength, got.HeapLength)
	assert.Equal(t, pkt.PayloadOffset, got.PayloadOffset)
	assert.Equal(t, pkt.PayloadLength, got.PayloadLength)
	assert.Equal(t, pkt.Payload, got.Payload)
	assert.Equal(t, pkt.Items, got.Items)
}

func TestDecodeBadMagic(t *testing.T) {
	cfg := wire.DefaultConfig()
	raw := wire.Encode(buildPacket(t, 1, 8, 0, []byte("x")), cfg)
	raw[0] = 0xFF
	_, err := wire.Decode(raw, cfg)
	assert.ErrorIs(t, err, wire.ErrBadMagic)
}

func TestDecodeBadVersion(t *testing.T) {
	cfg := wire.DefaultConfig()
	raw := wire.Encode(buildPacket(t, 1, 8, 0, []byte("x")), cfg)
	raw[1] = 0x03
	_, err := wire.Decode(raw, cfg)
	assert.ErrorIs(t, err, wire.ErrBadVersion)
}

func TestDecodeTruncated(t *testing.T) {
	cfg := wire.DefaultConfig()
	raw := wire.Encode(buildPacket(t, 1, 8, 0, []byte("x")), cfg)
	_, err := wire.Decode(raw[:6], cfg)
	assert.ErrorIs(t, err, wire.ErrTruncated)

	_, err = wire.Decode(raw[:len(raw)-2], cfg)
	assert.ErrorIs(t, err, wire.ErrTruncated)
}

func TestDecodePointerWidthMismatch(t *testing.T) {
	cfg := wire.DefaultConfig()
	raw := wire.Encode(buildPacket(t, 1, 8, 0, []byte("x")), cfg)
	raw[3] = 4 // claims hab=32, cfg expects 40
	_, err := wire.Decode(raw, cfg)
	assert.ErrorIs(t, err, wire.ErrPointerWidthMismatch)
}

func TestDecodeFramingViolation(t *testing.T) {
	cfg := wire.DefaultConfig()
	pkt := buildPacket(t, 1, 8, 4, []byte("12345")) // 4+5 > 8
	raw := wire.Encode(pkt, cfg)
	_, err := wire.Decode(raw, cfg)
	assert.ErrorIs(t, err, wire.ErrFramingViolation)
}

func TestIsEndOfStream(t *testing.T) {
	pkt := buildPacket(t, 1, 0, 0, nil)
	assert.False(t, wire.IsEndOfStream(pkt))

	pkt.Items = append(pkt.Items, wire.ItemPointer{ID: wire.StreamCtrl, Value: wire.StreamCtrlEOS, IsImmed: true})
	assert.True(t, wire.IsEndOfStream(pkt))
}
