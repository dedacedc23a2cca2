// Package cobs implements Consistent-Overhead Byte Stuffing, the framing
// scheme the R10 uses to keep 0x00 free as a frame sentinel.
package cobs

import "errors"

// ErrMalformed indicates a COBS-encoded stream could not be decoded: a
// pointer inside the stream referenced a position past the end of the buffer.
var ErrMalformed = errors.New("cobs: malformed frame")

// Encode replaces every zero byte in src with a pointer to the distance to
// the next zero (or to the end of the buffer), prepending the first such
// pointer. The returned slice never contains a zero byte.
func Encode(src []byte) []byte {
	if len(src) == 0 {
		return []byte{}
	}

	dst := make([]byte, 0, len(src)+len(src)/254+1)
	// codeIdx points at the not-yet-written length byte for the current run.
	codeIdx := 0
	dst = append(dst, 0) // placeholder for the first run length
	code := byte(1)

	for _, b := range src {
		if b == 0 {
			dst[codeIdx] = code
			codeIdx = len(dst)
			dst = append(dst, 0) // placeholder for the next run length
			code = 1
			continue
		}
		dst = append(dst, b)
		code++
		if code == 0xFF {
			dst[codeIdx] = code
			codeIdx = len(dst)
			dst = append(dst, 0)
			code = 1
		}
	}
	dst[codeIdx] = code

	return dst
}

// Decode reverses Encode. It fails with ErrMalformed if a length pointer
// would read past the end of the buffer.
func Decode(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return []byte{}, nil
	}

	dst := make([]byte, 0, len(src))
	i := 0
	for i < len(src) {
		code := int(src[i])
		if code == 0 {
			return nil, ErrMalformed
		}
		if i+code > len(src) {
			return nil, ErrMalformed
		}
		dst = append(dst, src[i+1:i+code]...)

		i += code
		if code < 0xFF && i < len(src) {
			dst = append(dst, 0)
		}
	}

	return dst, nil
}
