package encode

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/babelcloud/vidcap/internal/util"
)

// Choice is a negotiated codec and container pair.
type Choice struct {
	Codec     string // ffmpeg encoder name, empty for the container default
	Container string // mp4, webm or matroska
	MIME      string
}

// preferences is the negotiation order: H.264 in MP4 first, then VP9 and
// VP8 in WebM.
var preferences = []Choice{
	{Codec: "libx264", Container: "mp4", MIME: "video/mp4"},
	{Codec: "libvpx-vp9", Container: "webm", MIME: "video/webm"},
	{Codec: "libvpx", Container: "webm", MIME: "video/webm"},
}

// DefaultChoice lets ffmpeg pick its own encoder and mux the result
// itself. Used when no preferred encoder is available.
var DefaultChoice = Choice{Container: "matroska", MIME: "video/x-matroska"}

// ParseEncoders reads `ffmpeg -encoders` output and returns the names of
// the available video encoders.
func ParseEncoders(r io.Reader) map[string]bool {
	encoders := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[1] == "=" {
			continue
		}
		// Capability flags look like "V....D"; only video encoders matter.
		if strings.HasPrefix(fields[0], "V") {
			encoders[fields[1]] = true
		}
	}
	return encoders
}

// Probe asks the ffmpeg binary which video encoders it was built with.
func Probe(ctx context.Context, ffmpegPath string) (map[string]bool, error) {
	out, err := exec.CommandContext(ctx, ffmpegPath, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to probe encoders: %w", err)
	}
	return ParseEncoders(bytes.NewReader(out)), nil
}

// Select walks the preference order and returns the first supported
// choice, or DefaultChoice when none of the preferred encoders exist.
func Select(available map[string]bool) Choice {
	for _, c := range preferences {
		if available[c.Codec] {
			return c
		}
	}
	util.GetLogger().Warn("No preferred encoder available, falling back to container default")
	return DefaultChoice
}

// Negotiate probes ffmpeg and selects a codec and container. A failed
// probe falls back to the container default rather than failing the
// caller.
func Negotiate(ctx context.Context, ffmpegPath string) Choice {
	available, err := Probe(ctx, ffmpegPath)
	if err != nil {
		util.GetLogger().Warn("Encoder probe failed, falling back to container default", "error", err)
		return DefaultChoice
	}
	choice := Select(available)
	util.GetLogger().Debug("Negotiated output format", "codec", choice.Codec, "container", choice.Container)
	return choice
}
