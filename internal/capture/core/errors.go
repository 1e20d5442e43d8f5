package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrSourceBusy is wrapped by the ResourceError a lease acquisition
// returns while another operation holds the source.
var ErrSourceBusy = errors.New("source is busy")

// ValidationError reports invalid caller input (crop or time range). It is
// raised before any resource is allocated and has no side effects.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

// ResourceError reports that a required resource (source lease, render
// target, encoder) could not be acquired.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resource: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("resource: %s", e.Op)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// TimeoutError reports an elapsed deadline. Seek confirmation timeouts are
// advisory and never surfaced; a watchdog timeout with no usable output is
// fatal and surfaced as this type.
type TimeoutError struct {
	Op      string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s after %v", e.Op, e.Elapsed)
}

// PlaybackError reports an unexpected stall or interruption mid-capture.
type PlaybackError struct {
	Reason string
	Err    error
}

func (e *PlaybackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("playback: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("playback: %s", e.Reason)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// OutputError reports that the pipeline completed but produced no usable
// output (for example a zero-length clip).
type OutputError struct {
	Reason string
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("output: %s", e.Reason)
}
