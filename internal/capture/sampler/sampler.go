// Package sampler grabs evenly spaced JPEG stills from a bounded range of
// a media source.
package sampler

import (
	"fmt"
	"time"

	"github.com/babelcloud/vidcap/internal/capture/bounds"
	"github.com/babelcloud/vidcap/internal/capture/core"
	"github.com/babelcloud/vidcap/internal/capture/render"
	"github.com/babelcloud/vidcap/internal/capture/seek"
	"github.com/babelcloud/vidcap/internal/util"
)

const (
	DefaultFrameBudget = 90
	DefaultBoxSize     = 512
	DefaultQuality     = 0.95
	DefaultCaptureFPS  = 30
	DefaultSeekTimeout = seek.DefaultTimeout
)

// Options tune a sampling run. Zero fields fall back to the package
// defaults.
type Options struct {
	FrameBudget int           // max stills per run
	BoxSize     int           // bounding box for emitted stills
	Quality     float64       // JPEG quality in (0, 1]
	CaptureFPS  int           // caps the plan for short ranges
	SeekTimeout time.Duration // advisory per-seek confirmation wait
}

func (o Options) withDefaults() Options {
	if o.FrameBudget <= 0 {
		o.FrameBudget = DefaultFrameBudget
	}
	if o.BoxSize <= 0 {
		o.BoxSize = DefaultBoxSize
	}
	if o.Quality <= 0 {
		o.Quality = DefaultQuality
	}
	if o.CaptureFPS <= 0 {
		o.CaptureFPS = DefaultCaptureFPS
	}
	if o.SeekTimeout <= 0 {
		o.SeekTimeout = DefaultSeekTimeout
	}
	return o
}

// ProgressFunc is called after each still is appended.
type ProgressFunc func(done, total int)

// Sampler extracts stills by stepping the source position through a range
// and grabbing a frame at each planned timestamp.
type Sampler struct {
	opts Options
	seek *seek.Controller
}

// New returns a sampler with the given options.
func New(opts Options) *Sampler {
	return &Sampler{opts: opts.withDefaults(), seek: seek.New()}
}

// Sample seeks through rng and returns up to the configured budget of JPEG
// stills, cropped to crop and scaled into the still box. A degenerate range
// resolves to no frames without touching the source. Any seek or render
// failure aborts the whole run; no partial result is returned.
func (s *Sampler) Sample(h *core.Handle, rng core.TimeRange, crop core.CropArea, onProgress ProgressFunc) ([]core.Frame, error) {
	if rng.Duration() <= 0 {
		return nil, nil
	}
	if err := rng.Validate(h.Duration()); err != nil {
		return nil, err
	}
	nativeW, nativeH := h.Size()
	clamped, err := bounds.ClampCrop(crop, nativeW, nativeH)
	if err != nil {
		return nil, err
	}

	release, err := h.Acquire("sample")
	if err != nil {
		return nil, err
	}
	defer release()

	stamps := PlanTimestamps(rng, s.planCount(rng))
	total := len(stamps)
	boxW, boxH := render.FitBox(clamped.Width, clamped.Height, s.opts.BoxSize)

	logger := util.GetLogger()
	logger.Info("Sampling frames",
		"count", total, "start", rng.Start, "end", rng.End,
		"crop", clamped.String(), "still", fmt.Sprintf("%dx%d", boxW, boxH))

	frames := make([]core.Frame, 0, total)
	for i, ts := range stamps {
		s.seek.SeekTo(h, ts, s.opts.SeekTimeout)

		img, err := h.Frame()
		if err != nil {
			return nil, &core.PlaybackError{Reason: fmt.Sprintf("grab frame at %v", ts), Err: err}
		}
		still := render.Resize(render.Crop(img, clamped), boxW, boxH)
		data, err := render.EncodeJPEG(still, s.opts.Quality)
		if err != nil {
			return nil, &core.PlaybackError{Reason: fmt.Sprintf("encode still at %v", ts), Err: err}
		}

		frames = append(frames, core.Frame{
			Data:      data,
			MIME:      "image/jpeg",
			Width:     boxW,
			Height:    boxH,
			Timestamp: ts,
		})
		if onProgress != nil {
			onProgress(i+1, total)
		}
	}

	logger.Debug("Sampling finished", "frames", len(frames))
	return frames, nil
}

// planCount returns how many stills to capture: the budget, reduced for
// ranges too short to hold that many frames at the capture rate.
func (s *Sampler) planCount(rng core.TimeRange) int {
	n := s.opts.FrameBudget
	limit := int(rng.Duration() * time.Duration(s.opts.CaptureFPS) / time.Second)
	if limit < 1 {
		limit = 1
	}
	if n > limit {
		n = limit
	}
	return n
}

// PlanTimestamps returns n evenly spaced capture positions covering rng
// from its start, end exclusive. The schedule depends only on the range and
// n, so repeated runs sample identical positions.
func PlanTimestamps(rng core.TimeRange, n int) []time.Duration {
	if n <= 0 || rng.Duration() <= 0 {
		return nil
	}
	step := rng.Duration() / time.Duration(n)
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = rng.Start + time.Duration(i)*step
	}
	return out
}
