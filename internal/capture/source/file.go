package source

import (
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/babelcloud/vidcap/internal/capture/core"
	"github.com/babelcloud/vidcap/internal/util"
)

// FileSource plays a local video file through an ffmpeg decode pipeline.
// Frames are pulled as raw RGBA from a child process and paced at the
// file's frame rate; a position change tears the pipeline down and starts
// a new one at the requested offset.
//
// FileSource implements core.Source and core.FrameNotifier. The caller
// owns it and must Close it when done.
type FileSource struct {
	ffmpegPath string
	path       string
	info       Info
	frameDur   time.Duration
	frameBytes int

	mu      sync.Mutex
	pos     time.Duration
	playing bool
	ended   bool
	muted   bool
	frame   *image.RGBA
	proc    *decodeProc
	gen     int
	closed  bool

	seeked chan time.Duration
	ticks  chan core.FrameTick
}

var (
	_ core.Source        = (*FileSource)(nil)
	_ core.FrameNotifier = (*FileSource)(nil)
)

// Open probes path and returns a FileSource positioned at the start with
// its first frame decoded.
func Open(ctx context.Context, ffmpegPath, ffprobePath, path string) (*FileSource, error) {
	info, err := Probe(ctx, ffprobePath, path)
	if err != nil {
		return nil, err
	}
	return openWithInfo(ffmpegPath, path, info)
}

func openWithInfo(ffmpegPath, path string, info Info) (*FileSource, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	s := &FileSource{
		ffmpegPath: ffmpegPath,
		path:       path,
		info:       info,
		frameDur:   time.Second / time.Duration(info.FPS),
		frameBytes: info.Width * info.Height * 4,
		seeked:     make(chan time.Duration, 4),
		ticks:      make(chan core.FrameTick, 16),
	}
	if err := s.restart(s.gen, 0, false); err != nil {
		return nil, err
	}
	util.GetLogger().Debug("Source opened",
		"path", path, "duration", info.Duration,
		"size", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"fps", info.FPS, "codec", info.Codec)
	return s, nil
}

// Info returns the probed stream metadata.
func (s *FileSource) Info() Info { return s.info }

// Path returns the media file path.
func (s *FileSource) Path() string { return s.path }

func (s *FileSource) Duration() time.Duration { return s.info.Duration }

func (s *FileSource) Size() (int, int) { return s.info.Width, s.info.Height }

func (s *FileSource) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// SetPosition requests a move to t. The decode pipeline is restarted at
// the new offset in the background; the confirmation is published once the
// first frame there is decoded.
func (s *FileSource) SetPosition(t time.Duration) {
	if t < 0 {
		t = 0
	}
	if t > s.info.Duration {
		t = s.info.Duration
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	old := s.proc
	s.proc = nil
	s.pos = t
	s.ended = false
	s.mu.Unlock()

	go func() {
		if old != nil {
			old.stop()
		}
		if err := s.restart(gen, t, true); err != nil {
			util.GetLogger().Warn("Seek restart failed", "offset", t, "error", err)
		}
	}()
}

func (s *FileSource) Seeked() <-chan time.Duration { return s.seeked }

func (s *FileSource) Play() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("source is closed")
	}
	if s.playing {
		s.mu.Unlock()
		return nil
	}
	s.playing = true
	needProc := s.proc == nil && !s.ended
	gen := s.gen
	pos := s.pos
	s.mu.Unlock()

	if needProc {
		go func() {
			if err := s.restart(gen, pos, false); err != nil {
				util.GetLogger().Warn("Decoder restart failed", "offset", pos, "error", err)
			}
		}()
	}
	return nil
}

func (s *FileSource) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
}

func (s *FileSource) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.playing
}

func (s *FileSource) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *FileSource) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// SetMuted toggles the playout mute flag. No audio is decoded; the flag is
// the observable state callers save and restore around a recording.
func (s *FileSource) SetMuted(m bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.muted != m {
		util.GetLogger().Debug("Source mute changed", "muted", m)
	}
	s.muted = m
}

// Frame returns the most recently decoded frame. The returned image is
// replaced, never mutated, on the next decode, so callers may read it
// without holding the source.
func (s *FileSource) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("source is closed")
	}
	if s.frame == nil {
		return nil, fmt.Errorf("no frame decoded yet")
	}
	return s.frame, nil
}

func (s *FileSource) FrameReady() <-chan core.FrameTick { return s.ticks }

// Close stops the decode pipeline. Safe to call more than once.
func (s *FileSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.playing = false
	s.gen++
	old := s.proc
	s.proc = nil
	s.mu.Unlock()

	if old != nil {
		old.stop()
	}
	util.GetLogger().Debug("Source closed", "path", s.path)
	return nil
}

// restart spawns a decoder at offset, decodes the first frame there, and
// installs the pipeline if the source still wants this generation. With
// confirm set the new position is published as a completed seek.
func (s *FileSource) restart(gen int, offset time.Duration, confirm bool) error {
	proc, err := s.spawn(offset)
	if err != nil {
		return err
	}
	frame, err := s.readFrame(proc)
	if err != nil {
		proc.stop()
		return fmt.Errorf("failed to decode frame at %v: %w", offset, err)
	}

	s.mu.Lock()
	if s.closed || gen != s.gen || s.proc != nil {
		s.mu.Unlock()
		proc.stop()
		return nil
	}
	s.proc = proc
	s.frame = frame
	pos := s.pos
	s.mu.Unlock()

	if confirm {
		select {
		case s.seeked <- pos:
		default:
		}
	}
	go s.playLoop(gen, proc)
	return nil
}

// playLoop advances playback one frame per tick while the source is
// playing. It exits when its generation is replaced or the stream ends.
func (s *FileSource) playLoop(gen int, proc *decodeProc) {
	ticker := time.NewTicker(s.frameDur)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		if s.closed || gen != s.gen {
			s.mu.Unlock()
			return
		}
		if !s.playing {
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()

		frame, err := s.readFrame(proc)
		if err != nil {
			s.finishStream(gen, proc, err)
			return
		}

		s.mu.Lock()
		if s.closed || gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.frame = frame
		s.pos += s.frameDur
		if s.pos > s.info.Duration {
			s.pos = s.info.Duration
		}
		tick := core.FrameTick{Position: s.pos, At: time.Now()}
		s.mu.Unlock()

		select {
		case s.ticks <- tick:
		default:
		}
	}
}

// finishStream marks the end of playback after the decoder ran out of
// frames. A decode error on a stale generation is a torn-down pipeline,
// not an end of stream, and is ignored.
func (s *FileSource) finishStream(gen int, proc *decodeProc, err error) {
	s.mu.Lock()
	current := gen == s.gen && !s.closed
	if !current {
		s.mu.Unlock()
		return
	}
	if err != io.EOF && err != io.ErrUnexpectedEOF {
		util.GetLogger().Warn("Decoder stopped unexpectedly", "pos", s.pos, "error", err)
	}
	s.proc = nil
	s.pos = s.info.Duration
	s.ended = true
	s.playing = false
	tick := core.FrameTick{Position: s.pos, At: time.Now()}
	s.mu.Unlock()

	proc.stop()
	// Publish the boundary position so consumers observe the end.
	select {
	case s.ticks <- tick:
	default:
	}
}

func (s *FileSource) spawn(offset time.Duration) (*decodeProc, error) {
	cmd := exec.Command(s.ffmpegPath, decodeArgs(s.path, offset)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	util.GetLogger().Debug("Decoder started", "path", s.path, "offset", offset)
	return &decodeProc{cmd: cmd, stdout: stdout}, nil
}

// decodeArgs builds the raw RGBA decode pipeline arguments. The seek
// offset goes before the input so ffmpeg seeks by keyframe index instead
// of decoding from the start.
func decodeArgs(path string, offset time.Duration) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if offset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", offset.Seconds()))
	}
	return append(args,
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
}

func (s *FileSource) readFrame(p *decodeProc) (*image.RGBA, error) {
	buf := make([]byte, s.frameBytes)
	if _, err := io.ReadFull(p.stdout, buf); err != nil {
		return nil, err
	}
	return &image.RGBA{
		Pix:    buf,
		Stride: s.info.Width * 4,
		Rect:   image.Rect(0, 0, s.info.Width, s.info.Height),
	}, nil
}

// decodeProc is one ffmpeg child process emitting raw frames on stdout.
type decodeProc struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

// stop tears the process down, asking politely before killing it.
func (p *decodeProc) stop() {
	p.stdout.Close()
	if p.cmd.Process != nil {
		p.cmd.Process.Signal(syscall.SIGTERM)
	}

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
		<-done
	}
}
