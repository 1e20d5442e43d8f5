package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVP8IsKeyframe(t *testing.T) {
	assert.True(t, VP8IsKeyframe([]byte{0x10, 0x02, 0x00}))
	assert.False(t, VP8IsKeyframe([]byte{0x11, 0x02, 0x00}))
	assert.False(t, VP8IsKeyframe(nil))
}

func TestVP9IsKeyframe(t *testing.T) {
	// Profile 0 keyframe versus inter frame headers.
	assert.True(t, VP9IsKeyframe([]byte{0x82, 0x49, 0x83, 0x42}))
	assert.False(t, VP9IsKeyframe([]byte{0x86, 0x00}))
	// show_existing_frame headers never start a keyframe.
	assert.False(t, VP9IsKeyframe([]byte{0x88}))
	// Wrong frame marker.
	assert.False(t, VP9IsKeyframe([]byte{0x12}))
	assert.False(t, VP9IsKeyframe(nil))
}
