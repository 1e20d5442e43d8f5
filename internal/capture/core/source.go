package core

import (
	"image"
	"time"
)

// Source is a long-lived handle to decodable media. It is owned by the
// caller; the capture pipeline acquires temporary exclusive use per
// invocation through a Lease and must not touch the source outside that
// window.
//
// Position changes are asynchronous: SetPosition requests the move and the
// source reports completion on the Seeked channel. A source may confirm
// lazily or not at all; callers bound their wait and proceed best-effort.
type Source interface {
	// Duration returns the total media duration.
	Duration() time.Duration
	// Size returns the native frame dimensions.
	Size() (width, height int)

	// Position returns the current playback position.
	Position() time.Duration
	// SetPosition requests an asynchronous move to the given position.
	SetPosition(t time.Duration)
	// Seeked delivers the position reached after each completed move.
	Seeked() <-chan time.Duration

	// Play starts or resumes playback.
	Play() error
	// Pause halts playback, keeping the current position.
	Pause()
	Paused() bool
	// Ended reports whether playback ran past the last frame.
	Ended() bool

	Muted() bool
	SetMuted(bool)

	// Frame returns the currently decoded frame.
	Frame() (image.Image, error)
}

// FrameNotifier is an optional Source capability: a push notification for
// every newly rendered frame. Discovered by type assertion; sources without
// it are driven by interval polling instead.
type FrameNotifier interface {
	// FrameReady delivers a tick per decoded frame. The channel is never
	// closed while the source is open; slow receivers may miss ticks.
	FrameReady() <-chan FrameTick
}
