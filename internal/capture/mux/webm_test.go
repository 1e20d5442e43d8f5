package mux

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

func TestWebMWriter_HeaderOnFirstFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewWebMWriter(&buf, WebMCodecVP9, 640, 480, 30)
	assert.Zero(t, buf.Len(), "nothing is written before the first frame")

	frame := []byte{0x82, 0x49, 0x83, 0x42, 0x00, 0x01, 0x02}
	require.NoError(t, w.WriteFrame(frame, 0, true))

	out := buf.Bytes()
	require.Greater(t, len(out), len(ebmlMagic))
	assert.True(t, bytes.HasPrefix(out, ebmlMagic), "EBML header leads the file")
	assert.True(t, bytes.Contains(out, []byte("webm")), "doc type is webm")
	assert.True(t, bytes.Contains(out, []byte(WebMCodecVP9)))
}

func TestWebMWriter_FinalizeOnClose(t *testing.T) {
	var buf bytes.Buffer
	w := NewWebMWriter(&buf, WebMCodecVP8, 320, 240, 30)

	require.NoError(t, w.WriteFrame([]byte{0x50, 0x01, 0x02}, 0, true))
	require.NoError(t, w.WriteFrame([]byte{0x51, 0x03, 0x04}, 33*time.Millisecond, false))
	mid := buf.Len()

	require.NoError(t, w.Close())
	assert.GreaterOrEqual(t, buf.Len(), mid)
	require.NoError(t, w.Close(), "double close is a no-op")
}
