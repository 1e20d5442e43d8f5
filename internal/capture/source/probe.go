// Package source opens local video files as capture sources backed by an
// ffmpeg decode pipeline.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Info is the stream metadata a capture run needs from a media file.
type Info struct {
	Duration time.Duration
	Width    int
	Height   int
	FPS      int
	Codec    string
}

// probeOutput mirrors the ffprobe JSON fields we read.
type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		Duration   string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe extracts stream metadata from a media file with ffprobe.
func Probe(ctx context.Context, ffprobePath, path string) (Info, error) {
	if path == "" {
		return Info{}, fmt.Errorf("media path cannot be empty")
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}
	return parseProbeOutput(out)
}

func parseProbeOutput(data []byte) (Info, error) {
	var probed probeOutput
	if err := json.Unmarshal(data, &probed); err != nil {
		return Info{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var info Info
	for _, st := range probed.Streams {
		if st.CodecType != "video" {
			continue
		}
		info.Width = st.Width
		info.Height = st.Height
		info.Codec = st.CodecName
		if fps, err := parseFrameRate(st.RFrameRate); err == nil {
			info.FPS = fps
		}
		if d, err := parseSeconds(st.Duration); err == nil {
			info.Duration = d
		}
		break
	}
	if info.Width <= 0 || info.Height <= 0 {
		return Info{}, fmt.Errorf("no video stream found")
	}
	// The container duration is more reliable than the per-stream one.
	if d, err := parseSeconds(probed.Format.Duration); err == nil && d > 0 {
		info.Duration = d
	}
	if info.Duration <= 0 {
		return Info{}, fmt.Errorf("media duration unavailable")
	}
	if info.FPS <= 0 {
		info.FPS = 30
	}
	return info, nil
}

// parseFrameRate parses the "num/den" fraction ffprobe reports, rounding
// fractional rates like 30000/1001 to the nearest integer.
func parseFrameRate(raw string) (int, error) {
	parts := strings.Split(raw, "/")
	switch len(parts) {
	case 1:
		return strconv.Atoi(parts[0])
	case 2:
		num, err1 := strconv.Atoi(parts[0])
		den, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || den == 0 {
			return 0, fmt.Errorf("invalid frame rate fraction: %q", raw)
		}
		return int(math.Round(float64(num) / float64(den))), nil
	default:
		return 0, fmt.Errorf("unrecognized frame rate: %q", raw)
	}
}

func parseSeconds(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, fmt.Errorf("duration not present")
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", raw, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
