// Package frame implements the R10's wire framing: a length-prefixed,
// CRC16-trailed payload, COBS-encoded and sentinel-delimited, split into
// chunks small enough for a single BLE write.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/srg/r10bridge/internal/cobs"
	"github.com/srg/r10bridge/internal/crc16"
)

// ErrMalformedFrame indicates a reassembled frame was too short or failed
// COBS decoding.
var ErrMalformedFrame = errors.New("frame: malformed frame")

// minFrameLength is the smallest possible stripped payload: 2-byte length
// prefix + 2-byte CRC trailer, with zero bytes of message body.
const minFrameLength = 4

// maxChunkLength is the largest number of payload bytes, excluding the
// header byte, a single BLE write may carry.
const maxChunkLength = 19

// Build constructs the full wire representation of message m: a 2-byte
// little-endian length prefix covering [length,payload,crc], the payload
// itself, and a CRC16 trailer, COBS-encoded and wrapped in 0x00 sentinels.
func Build(m []byte) []byte {
	length := uint16(2 + len(m) + 2)
	lengthPrefixed := make([]byte, 2, 2+len(m))
	binary.LittleEndian.PutUint16(lengthPrefixed, length)
	lengthPrefixed = append(lengthPrefixed, m...)

	checked := crc16.AppendChecksum(lengthPrefixed)
	encoded := cobs.Encode(checked)

	wrapped := make([]byte, 0, len(encoded)+2)
	wrapped = append(wrapped, 0x00)
	wrapped = append(wrapped, encoded...)
	wrapped = append(wrapped, 0x00)
	return wrapped
}

// Chunk splits a COBS-wrapped frame (as returned by Build) into consecutive
// slices of at most maxChunkLength bytes each, prefixing every slice with
// headerByte so it can be written directly as a single BLE write.
func Chunk(wrapped []byte, headerByte byte) [][]byte {
	if len(wrapped) == 0 {
		return nil
	}

	var chunks [][]byte
	for i := 0; i < len(wrapped); i += maxChunkLength {
		end := i + maxChunkLength
		if end > len(wrapped) {
			end = len(wrapped)
		}
		chunk := make([]byte, 0, 1+end-i)
		chunk = append(chunk, headerByte)
		chunk = append(chunk, wrapped[i:end]...)
		chunks = append(chunks, chunk)
	}
	return chunks
}

// BuildChunks builds the wire representation of m and splits it into BLE
// write-sized chunks in one step.
func BuildChunks(m []byte, headerByte byte) [][]byte {
	return Chunk(Build(m), headerByte)
}

// Parse reverses Build: COBS-decodes the buffer, verifies and strips the
// CRC16 trailer, and strips the 2-byte length prefix, returning the original
// message bytes. Leading/trailing 0x00 sentinels, if present (as produced by
// Build or returned by Reassembler.Feed with sentinels re-attached), are
// stripped before COBS decoding.
func Parse(wrapped []byte) ([]byte, error) {
	body := wrapped
	if len(body) > 0 && body[0] == 0x00 {
		body = body[1:]
	}
	if len(body) > 0 && body[len(body)-1] == 0x00 {
		body = body[:len(body)-1]
	}

	decoded, err := cobs.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(decoded) < minFrameLength {
		return nil, ErrMalformedFrame
	}

	stripped, err := crc16.VerifyAndStrip(decoded)
	if err != nil {
		return nil, err
	}
	if len(stripped) < 2 {
		return nil, ErrMalformedFrame
	}
	return stripped[2:], nil
}

// Reassembler accumulates header-stripped notification bytes across
// multiple BLE writes and yields complete COBS-wrapped frames delimited by
// 0x00 sentinels.
type Reassembler struct {
	buf     []byte
	inFrame bool
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed appends one notification's header-stripped bytes. When a trailing
// sentinel closes a frame it returns the COBS-encoded bytes between the two
// sentinels (ready for Parse) and complete=true; otherwise it returns nil and
// false. Feed returns at most one frame per call: any bytes after the closing
// sentinel in the same chunk are discarded.
func (r *Reassembler) Feed(chunk []byte) (frame []byte, complete bool) {
	for _, b := range chunk {
		if b == 0x00 {
			if !r.inFrame {
				// Leading sentinel: start of frame.
				r.inFrame = true
				r.buf = r.buf[:0]
				continue
			}
			// Trailing sentinel: end of frame.
			r.inFrame = false
			out := r.buf
			r.buf = nil
			return out, true
		}
		if r.inFrame {
			r.buf = append(r.buf, b)
		}
	}
	return nil, false
}

// Reset discards any partially reassembled frame, used after a decode or
// CRC failure so the reader resumes cleanly at the next sentinel.
func (r *Reassembler) Reset() {
	r.inFrame = false
	r.buf = nil
}
