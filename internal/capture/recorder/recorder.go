// Package recorder captures a cropped, upscaled clip from a bounded range
// of a media source. A recording is a single blocking state machine: seek
// to the range start, play through it feeding rendered frames to an
// encoder, then finalize the encoder output into a clip.
package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/babelcloud/vidcap/internal/capture/bounds"
	"github.com/babelcloud/vidcap/internal/capture/core"
	"github.com/babelcloud/vidcap/internal/capture/encode"
	"github.com/babelcloud/vidcap/internal/capture/render"
	"github.com/babelcloud/vidcap/internal/capture/seek"
	"github.com/babelcloud/vidcap/internal/util"
)

// Phase names the stages a recording passes through, in order. Terminal
// phases are PhaseResolved and PhaseFailed.
type Phase string

const (
	PhaseInit      Phase = "init"
	PhaseSeeking   Phase = "seeking"
	PhaseRecording Phase = "recording"
	PhaseStopping  Phase = "stopping"
	PhaseResolved  Phase = "resolved"
	PhaseFailed    Phase = "failed"
)

const (
	DefaultBitrate       = 8_000_000
	DefaultFPS           = 30
	DefaultUpscaleTarget = 4.0
	DefaultMaxDimension  = 1920

	// DefaultWatchdogGrace pads the recording watchdog past the expected
	// clip duration before an unresponsive source is given up on.
	DefaultWatchdogGrace = 5 * time.Second

	// DefaultMuteRestoreDelay keeps the source muted briefly after the
	// encoder stops so trailing audio does not leak out.
	DefaultMuteRestoreDelay = 200 * time.Millisecond
)

// Options tune a recording run. Zero values fall back to the defaults.
type Options struct {
	Bitrate          int
	FPS              int
	UpscaleTarget    float64
	MaxDimension     int
	SeekTimeout      time.Duration
	WatchdogGrace    time.Duration
	MuteRestoreDelay time.Duration
	PollInterval     time.Duration
	FFmpegPath       string

	// OnPhase, when set, observes every phase transition.
	OnPhase func(Phase)
}

func (o Options) withDefaults() Options {
	if o.Bitrate <= 0 {
		o.Bitrate = DefaultBitrate
	}
	if o.FPS <= 0 {
		o.FPS = DefaultFPS
	}
	if o.UpscaleTarget <= 0 {
		o.UpscaleTarget = DefaultUpscaleTarget
	}
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	if o.SeekTimeout <= 0 {
		o.SeekTimeout = seek.DefaultTimeout
	}
	if o.WatchdogGrace <= 0 {
		o.WatchdogGrace = DefaultWatchdogGrace
	}
	if o.MuteRestoreDelay <= 0 {
		o.MuteRestoreDelay = DefaultMuteRestoreDelay
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second / time.Duration(o.FPS)
	}
	if o.FFmpegPath == "" {
		o.FFmpegPath = "ffmpeg"
	}
	return o
}

// Recorder produces clips from a media source. A single Recorder is safe
// to reuse across recordings; concurrent use of one source is rejected by
// the source lease.
type Recorder struct {
	opts Options
	seek *seek.Controller

	negotiate  func() encode.Choice
	newEncoder func(choice encode.Choice) encode.Encoder
}

// New returns a Recorder backed by the local ffmpeg binary.
func New(opts Options) *Recorder {
	opts = opts.withDefaults()
	r := &Recorder{opts: opts, seek: seek.New()}
	r.negotiate = func() encode.Choice {
		return encode.Negotiate(context.Background(), opts.FFmpegPath)
	}
	r.newEncoder = func(choice encode.Choice) encode.Encoder {
		return encode.NewFFmpeg(opts.FFmpegPath, choice)
	}
	return r
}

func (r *Recorder) phase(p Phase) {
	util.GetLogger().Debug("Recorder phase", "phase", p)
	if r.opts.OnPhase != nil {
		r.opts.OnPhase(p)
	}
}

// Record captures rng from the source into a clip cropped to crop and
// upscaled toward the configured target factor. The call blocks until the
// clip resolves or fails; the source lease is held for the whole run and
// the source mute state is restored on every exit path that changed it.
func (r *Recorder) Record(h *core.Handle, rng core.TimeRange, crop core.CropArea) (*core.OutputClip, error) {
	r.phase(PhaseInit)

	clip, err := r.record(h, rng, crop)
	if err != nil {
		r.phase(PhaseFailed)
		return nil, err
	}
	r.phase(PhaseResolved)
	return clip, nil
}

func (r *Recorder) record(h *core.Handle, rng core.TimeRange, crop core.CropArea) (*core.OutputClip, error) {
	if crop.Empty() {
		return nil, &core.ValidationError{Reason: "crop area is empty"}
	}
	if err := rng.Validate(h.Duration()); err != nil {
		return nil, err
	}
	nativeW, nativeH := h.Size()
	clamped, err := bounds.ClampCrop(crop, nativeW, nativeH)
	if err != nil {
		return nil, err
	}

	release, err := h.Acquire("record")
	if err != nil {
		return nil, err
	}
	defer release()

	scale := bounds.ComputeUpscale(clamped.Width, clamped.Height, r.opts.UpscaleTarget, r.opts.MaxDimension)
	targetW := int(float64(clamped.Width)*scale + 0.5)
	targetH := int(float64(clamped.Height)*scale + 0.5)
	target, err := render.NewTarget(targetW, targetH)
	if err != nil {
		return nil, &core.ResourceError{Op: "allocate render target", Err: err}
	}
	defer target.Release()

	choice := r.negotiate()
	enc, err := r.startEncoder(choice, targetW, targetH)
	if err != nil {
		return nil, err
	}

	s := &session{
		rec:      r,
		handle:   h,
		rng:      rng,
		crop:     clamped,
		target:   target,
		enc:      enc,
		choice:   choice,
		wasMuted: h.Muted(),
	}
	h.SetMuted(true)

	util.GetLogger().Info("Recording clip",
		"start", rng.Start,
		"end", rng.End,
		"crop", clamped.String(),
		"target", fmt.Sprintf("%dx%d", targetW, targetH),
		"codec", choice.Codec,
		"container", choice.Container)

	return s.run()
}

// startEncoder begins an encoder session at the configured bitrate and
// retries once with encoder defaults before giving up.
func (r *Recorder) startEncoder(choice encode.Choice, width, height int) (encode.Encoder, error) {
	enc := r.newEncoder(choice)
	err := enc.Begin(width, height, encode.Options{BitsPerSecond: r.opts.Bitrate, FPS: r.opts.FPS})
	if err == nil {
		return enc, nil
	}
	util.GetLogger().Warn("Encoder rejected configured settings, retrying with defaults", "error", err)

	enc = r.newEncoder(choice)
	if err := enc.Begin(width, height, encode.Options{FPS: r.opts.FPS}); err != nil {
		return nil, &core.ResourceError{Op: "start encoder", Err: err}
	}
	return enc, nil
}

type finishReason int

const (
	reasonCompleted finishReason = iota
	reasonEnded
	reasonPaused
	reasonWatchdog
	reasonFailure
)

// session is the per-recording state of one Record call.
type session struct {
	rec      *Recorder
	handle   *core.Handle
	rng      core.TimeRange
	crop     core.CropArea
	target   *render.Target
	enc      encode.Encoder
	choice   encode.Choice
	wasMuted bool

	ticks   TickSource
	lastPos time.Duration
	frames  int
	started time.Time
}

func (s *session) run() (*core.OutputClip, error) {
	opts := s.rec.opts
	s.started = time.Now()

	s.rec.phase(PhaseSeeking)
	watchdog := time.NewTimer(s.rng.Duration() + opts.WatchdogGrace)
	defer watchdog.Stop()

	if !s.rec.seek.SeekTo(s.handle, s.rng.Start, opts.SeekTimeout) {
		util.GetLogger().Warn("Recording from unconfirmed start position", "target", s.rng.Start)
	}
	if err := s.handle.Play(); err != nil {
		return s.finish(reasonFailure, &core.PlaybackError{Reason: "failed to start playback", Err: err})
	}

	s.rec.phase(PhaseRecording)
	s.ticks = ticksFor(s.handle.Source, opts.PollInterval)
	s.lastPos = s.rng.Start

	for {
		select {
		case <-watchdog.C:
			util.GetLogger().Warn("Recording watchdog fired",
				"elapsed", time.Since(s.started), "frames", s.frames)
			return s.finish(reasonWatchdog, nil)

		case tick := <-s.ticks.C():
			pos := tick.Position
			s.lastPos = pos

			if s.handle.Ended() {
				return s.finish(reasonEnded, nil)
			}
			if s.handle.Paused() && pos > s.rng.Start+seek.DefaultEpsilon {
				util.GetLogger().Warn("Playback paused mid-recording", "pos", pos)
				return s.finish(reasonPaused, nil)
			}

			img, err := s.handle.Frame()
			if err != nil {
				return s.finish(reasonFailure, &core.PlaybackError{Reason: "grab frame", Err: err})
			}
			pts := pos - s.rng.Start
			if pts < 0 {
				pts = 0
			}
			if err := s.enc.EncodeFrame(s.target.Draw(img, s.crop), pts); err != nil {
				return s.finish(reasonFailure, &core.PlaybackError{Reason: "encode frame", Err: err})
			}
			s.frames++

			if pos >= s.rng.End {
				s.handle.Pause()
				return s.finish(reasonCompleted, nil)
			}
		}
	}
}

// finish runs the stopping sequence exactly once: stop pacing, pause the
// source, finalize the encoder, restore the saved mute state after a short
// delay, then map the stop reason and the produced bytes to an outcome.
// Partial output from a watchdog or pause stop still resolves into a clip;
// a hard failure never does.
func (s *session) finish(reason finishReason, cause error) (*core.OutputClip, error) {
	opts := s.rec.opts
	s.rec.phase(PhaseStopping)

	if s.ticks != nil {
		s.ticks.Stop()
	}
	s.handle.Pause()

	data, endErr := s.enc.End()

	if opts.MuteRestoreDelay > 0 {
		time.Sleep(opts.MuteRestoreDelay)
	}
	s.handle.SetMuted(s.wasMuted)

	if cause != nil {
		return nil, cause
	}
	if endErr != nil {
		if reason == reasonWatchdog {
			return nil, &core.TimeoutError{Op: "record", Elapsed: time.Since(s.started)}
		}
		return nil, &core.OutputError{Reason: fmt.Sprintf("finalize encoder: %v", endErr)}
	}
	if len(data) == 0 {
		switch reason {
		case reasonWatchdog:
			return nil, &core.TimeoutError{Op: "record", Elapsed: time.Since(s.started)}
		case reasonPaused:
			return nil, &core.PlaybackError{Reason: "playback paused before any output"}
		default:
			return nil, &core.OutputError{Reason: "recording produced no data"}
		}
	}

	duration := s.lastPos - s.rng.Start
	if duration < 0 {
		duration = 0
	}
	if limit := s.rng.Duration(); duration > limit {
		duration = limit
	}
	width, height := s.target.Size()
	util.GetLogger().Info("Clip resolved",
		"bytes", len(data), "frames", s.frames, "duration", duration)
	return &core.OutputClip{
		Data:     data,
		MIME:     s.choice.MIME,
		Width:    width,
		Height:   height,
		Duration: duration,
	}, nil
}
