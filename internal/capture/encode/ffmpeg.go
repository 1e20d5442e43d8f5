package encode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4/pkg/media/h264reader"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"

	"github.com/babelcloud/vidcap/internal/capture/mux"
	"github.com/babelcloud/vidcap/internal/util"
)

// FFmpegEncoder pipes raw RGBA frames into an ffmpeg child process and
// re-muxes the elementary stream it produces. MP4 output goes through the
// fMP4 muxer and WebM output through the WebM muxer; the matroska fallback
// lets ffmpeg mux itself and passes the bytes through.
type FFmpegEncoder struct {
	ffmpegPath string
	choice     Choice

	ctx    context.Context
	cancel context.CancelFunc
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr bytes.Buffer

	out   bytes.Buffer
	muxer mux.Writer

	width  int
	height int
	fps    int
	frames int

	began   bool
	ended   bool
	res     []byte
	resErr  error
	done    chan struct{}
	loopErr error
}

// NewFFmpeg creates an encoder using the given ffmpeg binary and
// negotiated choice.
func NewFFmpeg(ffmpegPath string, choice Choice) *FFmpegEncoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegEncoder{ffmpegPath: ffmpegPath, choice: choice}
}

// Begin starts the ffmpeg process for the given frame geometry.
func (e *FFmpegEncoder) Begin(width, height int, opts Options) error {
	if e.began {
		return fmt.Errorf("encoder already started")
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = 30
	}
	e.width = width
	e.height = height
	e.fps = fps

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", strconv.Itoa(fps),
		"-i", "pipe:0",
		// 4:2:0 output needs even dimensions.
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-pix_fmt", "yuv420p",
		"-g", strconv.Itoa(fps * 2),
	}
	switch e.choice.Codec {
	case "libx264":
		args = append(args, "-c:v", "libx264", "-preset", "ultrafast")
	case "libvpx-vp9":
		args = append(args, "-c:v", "libvpx-vp9", "-deadline", "realtime", "-cpu-used", "8")
	case "libvpx":
		args = append(args, "-c:v", "libvpx", "-deadline", "realtime", "-cpu-used", "8")
	}
	if opts.BitsPerSecond > 0 {
		args = append(args, "-b:v", strconv.Itoa(opts.BitsPerSecond))
	}
	switch e.choice.Container {
	case "mp4":
		args = append(args, "-f", "h264")
	case "webm":
		args = append(args, "-f", "ivf")
	default:
		args = append(args, "-f", "matroska")
	}
	args = append(args, "pipe:1")

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.cmd = exec.CommandContext(e.ctx, e.ffmpegPath, args...)
	e.cmd.Stderr = &e.stderr

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		e.cancel()
		return err
	}
	e.stdin = stdin

	stdout, err := e.cmd.StdoutPipe()
	if err != nil {
		e.stdin.Close()
		e.cancel()
		return err
	}
	e.stdout = stdout

	if err := e.cmd.Start(); err != nil {
		e.stdin.Close()
		e.stdout.Close()
		e.cancel()
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	switch e.choice.Container {
	case "mp4":
		e.muxer = mux.NewFMP4Writer(&e.out)
	case "webm":
		codecID := mux.WebMCodecVP8
		if e.choice.Codec == "libvpx-vp9" {
			codecID = mux.WebMCodecVP9
		}
		// The pad filter rounds the coded size up to even values.
		e.muxer = mux.NewWebMWriter(&e.out, codecID, (width+1)/2*2, (height+1)/2*2, fps)
	}

	e.done = make(chan struct{})
	go e.readLoop()

	e.began = true
	util.GetLogger().Debug("Encoder started",
		"pid", e.cmd.Process.Pid, "codec", e.choice.Codec,
		"container", e.choice.Container, "size", fmt.Sprintf("%dx%d", width, height))
	return nil
}

// EncodeFrame submits one frame. The image must match the geometry given
// to Begin and use a packed buffer.
func (e *FFmpegEncoder) EncodeFrame(img *image.RGBA, pts time.Duration) error {
	if !e.began || e.ended {
		return fmt.Errorf("encoder not running")
	}
	b := img.Bounds()
	if b.Dx() != e.width || b.Dy() != e.height {
		return fmt.Errorf("frame size %dx%d does not match session %dx%d", b.Dx(), b.Dy(), e.width, e.height)
	}
	if img.Stride != 4*e.width {
		return fmt.Errorf("unexpected stride %d for width %d", img.Stride, e.width)
	}
	if _, err := e.stdin.Write(img.Pix); err != nil {
		return fmt.Errorf("failed to feed frame at %v: %w", pts, err)
	}
	e.frames++
	return nil
}

// End closes the input, waits for ffmpeg to flush, finalizes the muxer and
// returns the container bytes. A session that never saw a frame returns
// nil. End is idempotent; later calls return the first result.
func (e *FFmpegEncoder) End() ([]byte, error) {
	if !e.began {
		return nil, fmt.Errorf("encoder not started")
	}
	if e.ended {
		return e.res, e.resErr
	}
	e.ended = true
	e.res, e.resErr = e.finish()
	return e.res, e.resErr
}

func (e *FFmpegEncoder) finish() ([]byte, error) {
	defer e.cancel()

	e.stdin.Close()

	// Let ffmpeg flush on EOF, then escalate.
	select {
	case <-e.done:
	case <-time.After(10 * time.Second):
		util.GetLogger().Warn("Encoder did not drain in time, stopping ffmpeg")
		e.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-e.done:
		case <-time.After(2 * time.Second):
			e.cmd.Process.Kill()
			<-e.done
		}
	}

	werr := e.cmd.Wait()

	if e.muxer != nil {
		if cerr := e.muxer.Close(); cerr != nil && werr == nil {
			werr = cerr
		}
	}
	if e.loopErr != nil {
		return nil, fmt.Errorf("failed to mux encoder output: %w", e.loopErr)
	}
	if e.frames == 0 {
		util.GetLogger().Debug("Encoder finished without frames")
		return nil, nil
	}
	if werr != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w (%s)", werr, stderrTail(e.stderr.String()))
	}

	util.GetLogger().Debug("Encoder finished", "frames", e.frames, "bytes", e.out.Len())
	return e.out.Bytes(), nil
}

func (e *FFmpegEncoder) readLoop() {
	defer close(e.done)

	var err error
	switch e.choice.Container {
	case "mp4":
		err = e.readH264()
	case "webm":
		err = e.readIVF()
	default:
		_, err = io.Copy(&e.out, e.stdout)
	}
	if err != nil && err != io.EOF {
		e.loopErr = err
		util.GetLogger().Error("Encoder output loop failed", "error", err)
	}
}

// readH264 parses the Annex-B elementary stream and regroups NAL units
// into access units. B frames are disabled, so output order matches input
// order and timestamps follow the frame index.
func (e *FFmpegEncoder) readH264() error {
	reader, err := h264reader.NewReader(e.stdout)
	if err != nil {
		return err
	}

	var (
		au    []byte
		key   bool
		index int
	)
	flush := func() error {
		if len(au) == 0 {
			return nil
		}
		pts := time.Duration(index) * time.Second / time.Duration(e.fps)
		werr := e.muxer.WriteFrame(au, pts, key)
		au = nil
		key = false
		index++
		return werr
	}

	for {
		nal, err := reader.NextNAL()
		if err == io.EOF {
			return flush()
		}
		if err != nil {
			return err
		}

		au = append(au, 0x00, 0x00, 0x00, 0x01)
		au = append(au, nal.Data...)

		// A VCL NAL completes the access unit.
		if nal.UnitType >= h264reader.NalUnitTypeCodedSliceNonIdr && nal.UnitType <= h264reader.NalUnitTypeCodedSliceIdr {
			if nal.UnitType == h264reader.NalUnitTypeCodedSliceIdr {
				key = true
			}
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

// readIVF parses IVF frames and derives timestamps from the file header
// timebase.
func (e *FFmpegEncoder) readIVF() error {
	reader, header, err := ivfreader.NewWith(e.stdout)
	if err != nil {
		return err
	}
	isKey := mux.VP8IsKeyframe
	if e.choice.Codec == "libvpx-vp9" {
		isKey = mux.VP9IsKeyframe
	}

	index := 0
	for {
		frame, fh, err := reader.ParseNextFrame()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var pts time.Duration
		if header.TimebaseDenominator != 0 {
			pts = time.Duration(fh.Timestamp) * time.Second *
				time.Duration(header.TimebaseNumerator) / time.Duration(header.TimebaseDenominator)
		} else {
			pts = time.Duration(index) * time.Second / time.Duration(e.fps)
		}
		index++

		if err := e.muxer.WriteFrame(frame, pts, isKey(frame)); err != nil {
			return err
		}
	}
}

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 300 {
		s = s[len(s)-300:]
	}
	if s == "" {
		return "no stderr output"
	}
	return s
}
