package cobs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"single zero", []byte{0x00}},
		{"no zeros", []byte{0x01, 0x02, 0x03}},
		{"leading zero", []byte{0x00, 0x01, 0x02}},
		{"trailing zero", []byte{0x01, 0x02, 0x00}},
		{"interior zero", []byte{0x01, 0x02, 0x03, 0x00, 0x04, 0x05}},
		{"all zeros", []byte{0x00, 0x00, 0x00, 0x00}},
		{"long run without zero", bytes.Repeat([]byte{0x01}, 300)},
		{"long run with zero boundary", append(bytes.Repeat([]byte{0x01}, 254), 0x00, 0x02)},
		{"single non-zero", []byte{0x42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := Encode(tt.data)
			assert.NotContains(t, encoded, byte(0x00), "encoded output must contain no zero bytes")

			decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.data, decoded)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte{0x05, 0x01, 0x02}) // code points past end of buffer
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte{0x00}) // zero code byte is never valid
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncode_Empty(t *testing.T) {
	assert.Equal(t, []byte{}, Encode(nil))
}

func TestDecode_Empty(t *testing.T) {
	out, err := Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{}, out)
}
