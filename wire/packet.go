package wire

import "encoding/binary"

const (
	magicByte   byte = 0x53
	versionByte byte = 0x04

	headerSize     = 8
	itemPointerLen = 8

	// DefaultHeapAddressBits is the stream default heap-address-bits width.
	DefaultHeapAddressBits uint = 40
)

// Packet is one decoded datagram: the standard item pointer values needed to
// drive reassembly, the full item pointer slice (for the placement
// callback), and a payload slice borrowed from the caller's buffer.
type Packet struct {
	HeapCnt       uint64
	HeapLength    uint64
	PayloadOffset uint64
	PayloadLength uint64

	// HasHeapLength is false when the packet never carried an explicit
	// HEAP_LENGTH pointer (legal for single-packet heaps); callers treat
	// the heap length as PayloadOffset+PayloadLength in that case.
	HasHeapLength bool

	Items   []ItemPointer // full set, including the standard ones above
	Payload []byte        // borrowed slice into the source datagram
}

// Config is the subset of stream configuration the decoder needs: the
// item-pointer width it expects, derived from heap_address_bits.
type Config struct {
	HeapAddressBits uint
}

// DefaultConfig mirrors the wire-level defaults (hab=40, i.e. a 5-byte
// reserved/width byte).
func DefaultConfig() Config { return Config{HeapAddressBits: DefaultHeapAddressBits} }

// Decode parses one datagram into a Packet. It never copies: Packet.Payload
// aliases buf. Returns one of the Err* sentinels in this package on any
// framing violation.
func Decode(buf []byte, cfg Config) (Packet, error) {
	if len(buf) < headerSize {
		return Packet{}, ErrTruncated
	}
	if buf[0] != magicByte {
		return Packet{}, ErrBadMagic
	}
	if buf[1] != versionByte {
		return Packet{}, ErrBadVersion
	}

	hab := uint(buf[3]) * 8
	if hab == 0 {
		hab = cfg.HeapAddressBits
	}
	if hab != cfg.HeapAddressBits {
		return Packet{}, ErrPointerWidthMismatch
	}
	itemPtrWidth := buf[2]
	if itemPtrWidth != 0 && int(itemPtrWidth) != (64-int(hab))/8 {
		return Packet{}, ErrPointerWidthMismatch
	}

	nItems := int(binary.BigEndian.Uint16(buf[6:8]))
	itemsEnd := headerSize + nItems*itemPointerLen
	if len(buf) < itemsEnd {
		return Packet{}, ErrTruncated
	}

	pkt := Packet{Items: make([]ItemPointer, nItems)}
	for i := 0; i < nItems; i++ {
		off := headerSize + i*itemPointerLen
		raw := binary.BigEndian.Uint64(buf[off : off+itemPointerLen])
		ip := decodeItemPointer(raw, hab)
		pkt.Items[i] = ip

		switch {
		case ip.IsImmed && ip.ID == HeapCnt:
			pkt.HeapCnt = ip.Value
		case ip.IsImmed && ip.ID == HeapLength:
			pkt.HeapLength = ip.Value
			pkt.HasHeapLength = true
		case ip.IsImmed && ip.ID == PayloadOffset:
			pkt.PayloadOffset = ip.Value
		case ip.IsImmed && ip.ID == PayloadLength:
			pkt.PayloadLength = ip.Value
		}
	}

	payload := buf[itemsEnd:]
	if uint64(len(payload)) < pkt.PayloadLength {
		return Packet{}, ErrTruncated
	}
	pkt.Payload = payload[:pkt.PayloadLength]

	if pkt.HasHeapLength && pkt.PayloadOffset+pkt.PayloadLength > pkt.HeapLength {
		return Packet{}, ErrFramingViolation
	}

	return pkt, nil
}

// Encode is the inverse of Decode, used only by the round-trip test and by
// callers composing synthetic packets: it is not on any hot path.
func Encode(pkt Packet, cfg Config) []byte {
	hab := cfg.HeapAddressBits
	nItems := len(pkt.Items)
	buf := make([]byte, headerSize+nItems*itemPointerLen+len(pkt.Payload))

	buf[0] = magicByte
	buf[1] = versionByte
	buf[2] = byte((64 - hab) / 8)
	buf[3] = byte(hab / 8)
	binary.BigEndian.PutUint16(buf[6:8], uint16(nItems))

	for i, ip := range pkt.Items {
		off := headerSize + i*itemPointerLen
		binary.BigEndian.PutUint64(buf[off:off+itemPointerLen], encodeItemPointer(ip, hab))
	}

	copy(buf[headerSize+nItems*itemPointerLen:], pkt.Payload)
	return buf
}

// IsEndOfStream reports whether pkt carries a STREAM_CTRL=EOS item pointer.
func IsEndOfStream(pkt Packet) bool {
	for _, ip := range pkt.Items {
		if ip.IsImmed && ip.ID == StreamCtrl && ip.Value == StreamCtrlEOS {
			return true
		}
	}
	return false
}
