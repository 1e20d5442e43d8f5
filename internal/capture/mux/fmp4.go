package mux

import (
	"fmt"
	"io"
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4/seekablebuffer"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"

	"github.com/babelcloud/vidcap/internal/util"
)

const (
	fmp4VideoTrackID  = 1
	fmp4VideoClock    = 90000
	fmp4DefaultFrames = 30
)

// FMP4Writer muxes an H.264 Annex-B stream into fragmented MP4. The init
// segment is written lazily from the SPS/PPS found in the first keyframe;
// frames arriving before that keyframe are dropped.
type FMP4Writer struct {
	writer    io.Writer
	converter *AnnexBConverter
	sps       []byte
	pps       []byte
	initSent  bool
	closed    bool

	firstDTS  int64
	lastDTS   int64
	haveDTS   bool
	sampleNum uint32
	sequence  uint32
}

// NewFMP4Writer creates an fMP4 muxer writing to w.
func NewFMP4Writer(w io.Writer) *FMP4Writer {
	return &FMP4Writer{
		writer:    w,
		converter: NewAnnexBConverter(),
		sequence:  1,
	}
}

// WriteFrame appends one Annex-B access unit at the given timestamp.
func (w *FMP4Writer) WriteFrame(data []byte, pts time.Duration, keyframe bool) error {
	if w.closed {
		return fmt.Errorf("writer closed")
	}
	if len(data) == 0 {
		return nil
	}

	if !w.initSent {
		if !keyframe {
			util.GetLogger().Debug("Dropping frame before first keyframe", "pts", pts)
			return nil
		}
		if err := w.writeInit(data); err != nil {
			return err
		}
	}

	avcc, err := w.converter.Convert(data)
	if err != nil {
		return fmt.Errorf("failed to convert AnnexB to AVCC: %w", err)
	}
	if len(avcc) == 0 {
		return nil
	}
	if keyframe {
		avcc = PrependParameterSets(avcc, w.sps, w.pps)
	}

	sample := &fmp4.Sample{
		IsNonSyncSample: !keyframe,
		Payload:         avcc,
	}

	dts := scaleTimestamp(pts, fmp4VideoClock)
	if !w.haveDTS {
		w.firstDTS = dts
		w.haveDTS = true
	}
	if w.sampleNum > 0 {
		if d := dts - w.lastDTS; d > 0 {
			sample.Duration = uint32(d)
		}
	}
	if sample.Duration == 0 {
		sample.Duration = uint32(fmp4VideoClock / fmp4DefaultFrames)
	}

	base := dts - w.firstDTS
	if base < 0 {
		base = 0
	}
	part := &fmp4.Part{
		SequenceNumber: w.sequence,
		Tracks: []*fmp4.PartTrack{
			{
				ID:       fmp4VideoTrackID,
				BaseTime: uint64(base),
				Samples:  []*fmp4.Sample{sample},
			},
		},
	}

	var buf seekablebuffer.Buffer
	if err := part.Marshal(&buf); err != nil {
		return fmt.Errorf("failed to marshal media part: %w", err)
	}
	if _, err := w.writer.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write media part: %w", err)
	}

	w.lastDTS = dts
	w.sampleNum++
	w.sequence++
	return nil
}

// writeInit extracts the parameter sets from the first keyframe and writes
// the initialization segment.
func (w *FMP4Writer) writeInit(accessUnit []byte) error {
	sps, pps := ExtractParameterSets(accessUnit)
	if len(sps) == 0 || len(pps) == 0 {
		return fmt.Errorf("keyframe carries no SPS/PPS, cannot initialize")
	}
	w.sps = sps
	w.pps = pps

	init := &fmp4.Init{
		Tracks: []*fmp4.InitTrack{
			{
				ID:        fmp4VideoTrackID,
				TimeScale: fmp4VideoClock,
				Codec: &mp4.CodecH264{
					SPS: sps,
					PPS: pps,
				},
			},
		},
	}

	var buf seekablebuffer.Buffer
	if err := init.Marshal(&buf); err != nil {
		return fmt.Errorf("failed to marshal init segment: %w", err)
	}
	initBytes := buf.Bytes()
	if _, err := w.writer.Write(initBytes); err != nil {
		return fmt.Errorf("failed to write init segment: %w", err)
	}

	w.initSent = true
	util.GetLogger().Debug("fMP4 init segment written", "size", len(initBytes), "sps", len(sps), "pps", len(pps))
	return nil
}

// Close marks the writer finished. Fragments are self-contained, so no
// trailer is needed.
func (w *FMP4Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	util.GetLogger().Debug("fMP4 writer closed", "samples", w.sampleNum)
	return nil
}

// scaleTimestamp converts a timestamp into track timescale units.
func scaleTimestamp(ts time.Duration, timeScale uint32) int64 {
	if ts <= 0 {
		return 0
	}
	return ts.Nanoseconds() * int64(timeScale) / int64(time.Second)
}
