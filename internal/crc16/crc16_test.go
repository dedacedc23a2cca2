package crc16

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tests := [][]byte{
		{},
		{0x01},
		{0x01, 0x02, 0x03, 0x04},
		{0xA0, 0x13, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05},
	}

	for _, data := range tests {
		checked := AppendChecksum(data)
		stripped, err := VerifyAndStrip(checked)
		require.NoError(t, err)
		assert.Equal(t, data, stripped)
	}
}

func TestVerifyAndStrip_BitFlip(t *testing.T) {
	data := []byte{0xA0, 0x13, 0x00, 0x01, 0x02, 0x03}
	checked := AppendChecksum(data)

	flipped := append([]byte(nil), checked...)
	flipped[2] ^= 0x01

	_, err := VerifyAndStrip(flipped)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestVerifyAndStrip_TooShort(t *testing.T) {
	_, err := VerifyAndStrip([]byte{0x01})
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestCompute_Deterministic(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	assert.Equal(t, Compute(data), Compute(data))
}
