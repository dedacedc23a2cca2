package session

import "encoding/binary"

// Message prefixes the processor classifies on the first two bytes of a
// CRC-stripped, length-stripped frame payload.
var (
	prefixDeviceInfo     = [2]byte{0xA0, 0x13}
	prefixConfig         = [2]byte{0xBA, 0x13}
	prefixProtoResponse  = [2]byte{0xB4, 0x13}
	prefixProtoRequest   = [2]byte{0xB3, 0x13}
	prefixAcknowledgment = [2]byte{0x88, 0x13}
)

// envelopeBodyOffset is where the protobuf body begins within a B413/B313
// payload: 2-byte prefix, 3-byte counter, 2×2-byte length copies, 7 bytes of
// reserved padding.
const envelopeBodyOffset = 16

// counterOffset and counterLen locate the 3-byte counter within a B413/B313
// payload, immediately after the 2-byte prefix.
const (
	counterOffset = 2
	counterLen    = 3
)

// kind classifies a reassembled frame payload by its 2-byte prefix.
type kind int

const (
	kindUnknown kind = iota
	kindDeviceInfo
	kindConfig
	kindProtoResponse
	kindProtoRequest
)

func classify(payload []byte) kind {
	if len(payload) < 2 {
		return kindUnknown
	}
	switch [2]byte{payload[0], payload[1]} {
	case prefixDeviceInfo:
		return kindDeviceInfo
	case prefixConfig:
		return kindConfig
	case prefixProtoResponse:
		return kindProtoResponse
	case prefixProtoRequest:
		return kindProtoRequest
	default:
		return kindUnknown
	}
}

// decodeCounter extracts the 3-byte big-endian counter from a B413/B313
// payload. The payload must be at least envelopeBodyOffset bytes.
func decodeCounter(payload []byte) uint32 {
	return uint32(payload[counterOffset])<<16 | uint32(payload[counterOffset+1])<<8 | uint32(payload[counterOffset+2])
}

// protoBody returns the protobuf body of a B413/B313 payload, or nil if the
// payload is too short to carry one.
func protoBody(payload []byte) []byte {
	if len(payload) <= envelopeBodyOffset {
		return nil
	}
	return payload[envelopeBodyOffset:]
}

// encodeCounter writes counter as the 3-byte big-endian field at
// counterOffset within dst.
func encodeCounter(dst []byte, counter uint32) {
	dst[counterOffset] = byte(counter >> 16)
	dst[counterOffset+1] = byte(counter >> 8)
	dst[counterOffset+2] = byte(counter)
}

// buildRequestEnvelope constructs a B313-prefixed request frame body
// carrying counter and the protobuf-encoded body, with two copies of the
// body's length at offsets 5 and 7, per the handshake/request wire shape.
func buildRequestEnvelope(counter uint32, body []byte) []byte {
	out := make([]byte, envelopeBodyOffset+len(body))
	out[0], out[1] = prefixProtoRequest[0], prefixProtoRequest[1]
	encodeCounter(out, counter)

	length := uint16(len(body))
	binary.BigEndian.PutUint16(out[5:7], length)
	binary.BigEndian.PutUint16(out[7:9], length)
	// out[9:16] remains zero-filled reserved padding.

	copy(out[envelopeBodyOffset:], body)
	return out
}

// buildAck constructs the fixed-shape acknowledgment frame body: "8813",
// echoing the original message's first two bytes, plus an 8-byte zero tail.
func buildAck(originalPrefix [2]byte) []byte {
	out := make([]byte, 4+8)
	out[0], out[1] = prefixAcknowledgment[0], prefixAcknowledgment[1]
	out[2], out[3] = originalPrefix[0], originalPrefix[1]
	return out
}
