package mux

import (
	"fmt"
	"io"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"

	"github.com/babelcloud/vidcap/internal/util"
)

// WebM codec IDs for the video track.
const (
	WebMCodecVP8 = "V_VP8"
	WebMCodecVP9 = "V_VP9"
)

// WebMWriter muxes VP8 or VP9 frames into a WebM container with a single
// video track. The container header is written on the first frame.
type WebMWriter struct {
	writer      io.Writer
	block       webm.BlockWriteCloser
	codecID     string
	width       int
	height      int
	fps         int
	initialized bool
	lastTS      time.Duration
	frames      uint32
}

// NewWebMWriter creates a WebM muxer writing to w. codecID selects the
// track codec, WebMCodecVP8 or WebMCodecVP9.
func NewWebMWriter(w io.Writer, codecID string, width, height, fps int) *WebMWriter {
	if fps <= 0 {
		fps = 30
	}
	return &WebMWriter{
		writer:  w,
		codecID: codecID,
		width:   width,
		height:  height,
		fps:     fps,
	}
}

// writerCloser wraps an io.Writer with basic error handling. Once a write
// fails the wrapper stays closed so the EBML layer stops emitting.
type writerCloser struct {
	writer io.Writer
	closed bool
}

func (wc *writerCloser) Write(p []byte) (n int, err error) {
	if wc.closed {
		return 0, io.ErrClosedPipe
	}
	n, err = wc.writer.Write(p)
	if err != nil {
		util.GetLogger().Warn("WebM write error, marking writer as closed", "error", err, "size", len(p))
		wc.closed = true
	}
	return n, err
}

func (wc *writerCloser) Close() error {
	wc.closed = true
	return nil
}

func (m *WebMWriter) writeHeader() error {
	if m.initialized {
		return nil
	}

	writers, err := webm.NewSimpleBlockWriter(&writerCloser{writer: m.writer}, []webm.TrackEntry{
		{
			Name:            "Video",
			TrackNumber:     1,
			TrackUID:        1,
			CodecID:         m.codecID,
			TrackType:       1,
			DefaultDuration: uint64(time.Second / time.Duration(m.fps)),
			Video: &webm.Video{
				PixelWidth:  uint64(m.width),
				PixelHeight: uint64(m.height),
			},
		},
	}, mkvcore.WithOnFatalHandler(func(err error) {
		util.GetLogger().Warn("WebM muxer error", "error", err)
		m.initialized = false
		m.block = nil
	}))
	if err != nil {
		return fmt.Errorf("failed to create WebM writer: %w", err)
	}

	m.block = writers[0]
	m.initialized = true
	util.GetLogger().Debug("WebM container initialized", "codec", m.codecID, "size", fmt.Sprintf("%dx%d", m.width, m.height))
	return nil
}

// WriteFrame appends one VP8/VP9 frame at the given timestamp. Block
// timecodes are in milliseconds per the default timecode scale.
func (m *WebMWriter) WriteFrame(data []byte, pts time.Duration, keyframe bool) error {
	if len(data) == 0 {
		return nil
	}
	if err := m.writeHeader(); err != nil {
		return err
	}
	if m.block == nil {
		return fmt.Errorf("WebM muxer not initialized")
	}

	if _, err := m.block.Write(keyframe, pts.Milliseconds(), data); err != nil {
		return fmt.Errorf("failed to write video frame: %w", err)
	}
	m.lastTS = pts
	m.frames++
	return nil
}

// Close finalizes the WebM container.
func (m *WebMWriter) Close() error {
	if m.block != nil {
		if err := m.block.Close(); err != nil {
			util.GetLogger().Warn("WebM writer close error", "error", err)
		}
		m.block = nil
	}
	m.initialized = false
	util.GetLogger().Debug("WebM muxer closed", "frames", m.frames, "last_ts", m.lastTS.Truncate(time.Millisecond))
	return nil
}
