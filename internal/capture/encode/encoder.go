// Package encode compresses raw RGBA frames into a video container using
// an external ffmpeg process.
package encode

import (
	"image"
	"time"
)

// Options tune an encoder session.
type Options struct {
	BitsPerSecond int // target bitrate; 0 lets the codec decide
	FPS           int // input frame rate; 0 means 30
}

// Encoder compresses raw frames into a finished container. Begin starts a
// session for one frame geometry, EncodeFrame submits frames in
// presentation order, End flushes and returns the container bytes. End is
// the only finalizer and is safe to call once per session.
type Encoder interface {
	Begin(width, height int, opts Options) error
	EncodeFrame(img *image.RGBA, pts time.Duration) error
	End() ([]byte, error)
}
