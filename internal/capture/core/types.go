package core

import (
	"fmt"
	"time"
)

// TimeRange is a window inside the source media timeline.
// A valid range satisfies 0 <= Start < End <= source duration; degenerate
// ranges (End-Start <= 0) are accepted by the sampler and yield no frames.
type TimeRange struct {
	Start time.Duration
	End   time.Duration
}

// Duration returns End-Start. May be <= 0 for degenerate ranges.
func (r TimeRange) Duration() time.Duration {
	return r.End - r.Start
}

// Validate checks the range against the source duration.
func (r TimeRange) Validate(total time.Duration) error {
	if r.Start < 0 || r.End <= r.Start || r.End > total {
		return &ValidationError{Reason: fmt.Sprintf("time range %v..%v outside 0..%v", r.Start, r.End, total)}
	}
	return nil
}

// CropArea is a rectangular sub-region of the source frame, in source-native
// pixel coordinates.
type CropArea struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Empty reports whether the crop has no area.
func (c CropArea) Empty() bool {
	return c.Width <= 0 || c.Height <= 0
}

func (c CropArea) String() string {
	return fmt.Sprintf("%d,%d %dx%d", c.X, c.Y, c.Width, c.Height)
}

// ParseCrop parses a crop spec of the form "X,Y,WxH", e.g. "100,50,512x288".
func ParseCrop(s string) (CropArea, error) {
	var c CropArea
	n, err := fmt.Sscanf(s, "%d,%d,%dx%d", &c.X, &c.Y, &c.Width, &c.Height)
	if err != nil || n != 4 {
		return CropArea{}, &ValidationError{Reason: fmt.Sprintf("crop %q is not of the form X,Y,WxH", s)}
	}
	if c.X < 0 || c.Y < 0 || c.Empty() {
		return CropArea{}, &ValidationError{Reason: fmt.Sprintf("crop %q has no area", s)}
	}
	return c, nil
}

// FrameTick reports that a new decoded frame became available for rendering.
type FrameTick struct {
	// Position is the source media time at the moment of the tick.
	Position time.Duration
	// At is the wall-clock time of the tick.
	At time.Time
}

// Frame is one compressed still image produced by the sampler. Frames are
// handed to the caller as they are produced and not retained.
type Frame struct {
	Data      []byte
	MIME      string
	Width     int
	Height    int
	Timestamp time.Duration
}

// OutputClip is the finished re-encoded clip. It is immutable and produced
// exactly once per recording; a failed recording yields no clip at all.
type OutputClip struct {
	Data     []byte
	MIME     string
	Width    int
	Height   int
	Duration time.Duration
}
