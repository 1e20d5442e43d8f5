package encode

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const encodersFixture = `Encoders:
 V..... = Video
 A..... = Audio
 S..... = Subtitle
 .F.... = Frame-level multithreading
 ..S... = Slice-level multithreading
 ...X.. = Codec is experimental
 ....B. = Supports draw_horiz_band
 .....D = Supports direct rendering method 1
 ------
 V....D a64multi             Multicolor charset for Commodore 64 (codec a64_multi)
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D libvpx               libvpx VP8 (codec vp8)
 V....D libvpx-vp9           libvpx VP9 (codec vp9)
 A....D aac                  AAC (Advanced Audio Coding)
 S..... webvtt               WebVTT subtitle
`

func TestParseEncoders(t *testing.T) {
	encoders := ParseEncoders(strings.NewReader(encodersFixture))

	assert.True(t, encoders["libx264"])
	assert.True(t, encoders["libvpx"])
	assert.True(t, encoders["libvpx-vp9"])
	assert.True(t, encoders["a64multi"])

	assert.False(t, encoders["aac"], "audio encoders are not video encoders")
	assert.False(t, encoders["webvtt"])
	assert.False(t, encoders["="], "legend lines must be skipped")
}

func TestSelect_PreferenceOrder(t *testing.T) {
	all := map[string]bool{"libx264": true, "libvpx-vp9": true, "libvpx": true}
	choice := Select(all)
	assert.Equal(t, "libx264", choice.Codec)
	assert.Equal(t, "mp4", choice.Container)
	assert.Equal(t, "video/mp4", choice.MIME)

	choice = Select(map[string]bool{"libvpx-vp9": true, "libvpx": true})
	assert.Equal(t, "libvpx-vp9", choice.Codec)
	assert.Equal(t, "webm", choice.Container)
	assert.Equal(t, "video/webm", choice.MIME)

	choice = Select(map[string]bool{"libvpx": true})
	assert.Equal(t, "libvpx", choice.Codec)
	assert.Equal(t, "webm", choice.Container)

	choice = Select(map[string]bool{"mpeg4": true})
	assert.Equal(t, DefaultChoice, choice, "unknown encoders fall back to the container default")
	assert.Equal(t, "matroska", choice.Container)
}

func isFFmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

func TestProbe_Local(t *testing.T) {
	if !isFFmpegAvailable() {
		t.Skip("ffmpeg not found in PATH")
	}

	encoders, err := Probe(context.Background(), "ffmpeg")
	require.NoError(t, err)
	assert.NotEmpty(t, encoders)
}
