package gattbus

import (
	"testing"

	"github.com/smallnest/ringbuffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFramed_RoundTrip(t *testing.T) {
	rb := ringbuffer.New(256)
	rb.SetBlocking(true)

	require.NoError(t, writeFramed(rb, []byte("hello")))
	require.NoError(t, writeFramed(rb, []byte("world!")))

	got1, err := readFramed(rb)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got1)

	got2, err := readFramed(rb)
	require.NoError(t, err)
	assert.Equal(t, []byte("world!"), got2)
}

func TestWriteFramed_Empty(t *testing.T) {
	rb := ringbuffer.New(64)
	rb.SetBlocking(true)

	require.NoError(t, writeFramed(rb, []byte{}))
	got, err := readFramed(rb)
	require.NoError(t, err)
	assert.Empty(t, got)
}
