package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildParse_RoundTrip(t *testing.T) {
	messages := [][]byte{
		{0xB3, 0x13, 0x00, 0x01, 0x02},
		make([]byte, 60), // exercises multi-chunk framing
		{0x88, 0x13},
	}

	for _, m := range messages {
		wrapped := Build(m)
		assert.Equal(t, byte(0x00), wrapped[0])
		assert.Equal(t, byte(0x00), wrapped[len(wrapped)-1])

		parsed, err := Parse(wrapped)
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
}

func TestChunk_MaxLength(t *testing.T) {
	wrapped := Build(make([]byte, 100))
	chunks := Chunk(wrapped, 0x7E)

	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), maxChunkLength+1)
		assert.Equal(t, byte(0x7E), c[0])
	}
}

func TestReassembler_ChunkedReproducesOriginal(t *testing.T) {
	m := []byte{0xB4, 0x13, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10}
	chunks := BuildChunks(m, 0x42)

	reasm := NewReassembler()
	var got []byte
	var complete bool
	for _, c := range chunks {
		headerStripped := c[1:] // simulate the reader stripping the header byte
		var f []byte
		f, complete = reasm.Feed(headerStripped)
		if complete {
			got = f
		}
	}

	require.True(t, complete)
	decoded, err := Parse(wrapWithSentinels(got))
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

// wrapWithSentinels re-adds the 0x00 sentinels the Reassembler strips so the
// result can be passed straight to Parse.
func wrapWithSentinels(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	out = append(out, 0x00)
	out = append(out, b...)
	out = append(out, 0x00)
	return out
}

func TestParse_CRCMismatch(t *testing.T) {
	wrapped := Build([]byte{0x01, 0x02, 0x03})
	// Flip a bit in an encoded data byte (not a COBS code byte), so the frame
	// still decodes but its CRC16 trailer no longer matches.
	wrapped[5] ^= 0x01

	_, err := Parse(wrapped)
	assert.Error(t, err)
}

func TestParse_TooShort(t *testing.T) {
	_, err := Parse([]byte{0x00, 0x01, 0x00})
	assert.ErrorIs(t, err, ErrMalformedFrame)
}
