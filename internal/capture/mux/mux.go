// Package mux assembles encoded video frames into playable containers.
package mux

import "time"

// Writer turns a stream of encoded access units into a container. Frames
// arrive in presentation order; Close finalizes the container. The bytes
// land in the io.Writer the muxer was built around.
type Writer interface {
	WriteFrame(data []byte, pts time.Duration, keyframe bool) error
	Close() error
}
