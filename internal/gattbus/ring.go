package gattbus

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/smallnest/ringbuffer"
)

// writeFramed and readFramed layer length-prefixed framing over a
// smallnest/ringbuffer.RingBuffer, which is a plain byte stream: without a
// length prefix, consecutive chunk writes would have no boundary to read
// back out individually.

func writeFramed(rb *ringbuffer.RingBuffer, data []byte) error {
	var hdr [2]byte
	if len(data) > 0xFFFF {
		return fmt.Errorf("chunk too large: %d bytes", len(data))
	}
	binary.BigEndian.PutUint16(hdr[:], uint16(len(data)))
	if _, err := rb.Write(hdr[:]); err != nil {
		return err
	}
	_, err := rb.Write(data)
	return err
}

func readFramed(rb *ringbuffer.RingBuffer) ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(rb, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(hdr[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(rb, data); err != nil {
		return nil, err
	}
	return data, nil
}
