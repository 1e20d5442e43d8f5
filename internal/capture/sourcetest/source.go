// Package sourcetest provides a scripted in-memory Source for pipeline
// tests, in the spirit of net/http/httptest: playback, seek confirmation,
// stalls and mid-stream pauses are all controllable from the test.
package sourcetest

import (
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/babelcloud/vidcap/internal/capture/core"
)

// Config controls the scripted behaviour of a fake source.
type Config struct {
	Duration time.Duration
	Width    int
	Height   int

	// TickEvery is the playback clock step. Defaults to 10ms.
	TickEvery time.Duration
	// Advance is the position step per clock tick. Defaults to TickEvery.
	Advance time.Duration

	// SeekLatency delays seek confirmations. Zero confirms on the next
	// scheduler pass.
	SeekLatency time.Duration
	// ConfirmSeeks controls whether SetPosition ever reports back on the
	// Seeked channel. The position still moves either way.
	ConfirmSeeks bool

	// Freeze makes playback produce no frames and no progress at all.
	Freeze bool
	// StallAt freezes the position once reached while frames keep coming.
	StallAt time.Duration
	// PauseAt pauses playback once the position reaches it.
	PauseAt time.Duration

	InitialMuted bool
	// FrameErr is returned by Frame when set.
	FrameErr error
	// PlayErr is returned by Play when set.
	PlayErr error
}

// Source is the scripted fake. It implements core.Source; wrap it with
// Notify to add the FrameNotifier capability.
type Source struct {
	mu  sync.Mutex
	cfg Config

	pos     time.Duration
	playing bool
	ended   bool
	muted   bool

	seeked chan time.Duration
	ticks  chan core.FrameTick
	stop   chan struct{}

	frame *image.RGBA

	muteSets  []bool
	playCalls int
	seekReqs  int
}

// New creates a fake source with the given script.
func New(cfg Config) *Source {
	if cfg.TickEvery == 0 {
		cfg.TickEvery = 10 * time.Millisecond
	}
	if cfg.Advance == 0 {
		cfg.Advance = cfg.TickEvery
	}
	if cfg.Width == 0 {
		cfg.Width = 640
	}
	if cfg.Height == 0 {
		cfg.Height = 480
	}

	frame := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	fill := color.RGBA{R: 40, G: 120, B: 200, A: 255}
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			frame.SetRGBA(x, y, fill)
		}
	}

	return &Source{
		cfg:    cfg,
		muted:  cfg.InitialMuted,
		seeked: make(chan time.Duration, 4),
		ticks:  make(chan core.FrameTick, 16),
		frame:  frame,
	}
}

func (s *Source) Duration() time.Duration { return s.cfg.Duration }

func (s *Source) Size() (int, int) { return s.cfg.Width, s.cfg.Height }

func (s *Source) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Seed sets the position synchronously, without the seek machinery.
func (s *Source) Seed(t time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = t
}

func (s *Source) SetPosition(t time.Duration) {
	s.mu.Lock()
	s.seekReqs++
	s.mu.Unlock()
	go func() {
		if s.cfg.SeekLatency > 0 {
			time.Sleep(s.cfg.SeekLatency)
		}
		s.mu.Lock()
		s.pos = t
		s.ended = false
		confirm := s.cfg.ConfirmSeeks
		s.mu.Unlock()
		if confirm {
			select {
			case s.seeked <- t:
			default:
			}
		}
	}()
}

func (s *Source) Seeked() <-chan time.Duration { return s.seeked }

func (s *Source) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playCalls++
	if s.cfg.PlayErr != nil {
		return s.cfg.PlayErr
	}
	if s.playing {
		return nil
	}
	s.playing = true
	s.ended = false
	s.stop = make(chan struct{})
	go s.run(s.stop)
	return nil
}

func (s *Source) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseLocked()
}

func (s *Source) pauseLocked() {
	if !s.playing {
		return
	}
	s.playing = false
	close(s.stop)
	s.stop = nil
}

func (s *Source) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.playing
}

func (s *Source) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *Source) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *Source) SetMuted(m bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = m
	s.muteSets = append(s.muteSets, m)
}

// MuteSets returns every SetMuted value in call order.
func (s *Source) MuteSets() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bool, len(s.muteSets))
	copy(out, s.muteSets)
	return out
}

// PlayCalls returns how often Play was invoked.
func (s *Source) PlayCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playCalls
}

// SeekRequests returns how often SetPosition was invoked.
func (s *Source) SeekRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seekReqs
}

// ConfirmAt pushes a seek confirmation for an arbitrary position, bypassing
// the scripted seek path.
func (s *Source) ConfirmAt(t time.Duration) {
	select {
	case s.seeked <- t:
	default:
	}
}

func (s *Source) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.FrameErr != nil {
		return nil, s.cfg.FrameErr
	}
	return s.frame, nil
}

func (s *Source) run(stop chan struct{}) {
	ticker := time.NewTicker(s.cfg.TickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			if !s.playing || s.cfg.Freeze {
				s.mu.Unlock()
				continue
			}
			if s.cfg.PauseAt > 0 && s.pos >= s.cfg.PauseAt {
				s.pauseLocked()
				s.mu.Unlock()
				return
			}
			stalled := s.cfg.StallAt > 0 && s.pos >= s.cfg.StallAt
			if !stalled {
				s.pos += s.cfg.Advance
			}
			done := false
			if s.pos >= s.cfg.Duration {
				s.pos = s.cfg.Duration
				s.ended = true
				s.pauseLocked()
				done = true
			}
			tick := core.FrameTick{Position: s.pos, At: now}
			s.mu.Unlock()

			// The boundary tick is published so consumers can observe the
			// final position before playback stops.
			select {
			case s.ticks <- tick:
			default:
			}
			if done {
				return
			}
		}
	}
}

// Notify wraps a fake source with the FrameNotifier capability.
type Notify struct {
	*Source
}

// WithNotify exposes the source's frame ticks as a FrameNotifier.
func (s *Source) WithNotify() *Notify {
	return &Notify{Source: s}
}

func (n *Notify) FrameReady() <-chan core.FrameTick { return n.ticks }
