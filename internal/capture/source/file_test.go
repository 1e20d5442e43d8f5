package source

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolsAvailable() bool {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return false
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return false
	}
	return true
}

// makeTestClip renders a two second synthetic clip. The mpeg4 encoder is
// part of every ffmpeg build, unlike libx264.
func makeTestClip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	cmd := exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc2=duration=2:size=320x240:rate=30",
		"-c:v", "mpeg4", "-pix_fmt", "yuv420p", "-y", path)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "generate test clip: %s", out)
	return path
}

func TestOpen_DecodesFirstFrame(t *testing.T) {
	if !toolsAvailable() {
		t.Skip("ffmpeg/ffprobe not available, skipping integration test")
	}

	src, err := Open(context.Background(), "", "", makeTestClip(t))
	require.NoError(t, err)
	defer src.Close()

	w, h := src.Size()
	assert.Equal(t, 320, w)
	assert.Equal(t, 240, h)
	assert.Equal(t, 30, src.Info().FPS)
	assert.InDelta(t, float64(2*time.Second), float64(src.Duration()), float64(200*time.Millisecond))

	assert.True(t, src.Paused())
	assert.Zero(t, src.Position())

	img, err := src.Frame()
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 240, img.Bounds().Dy())
}

func TestOpen_MissingFile(t *testing.T) {
	if !toolsAvailable() {
		t.Skip("ffmpeg/ffprobe not available, skipping integration test")
	}

	_, err := Open(context.Background(), "", "", "/nonexistent/clip.mp4")
	require.Error(t, err)
}

func TestFileSource_PlayAdvancesAndPauseHolds(t *testing.T) {
	if !toolsAvailable() {
		t.Skip("ffmpeg/ffprobe not available, skipping integration test")
	}

	src, err := Open(context.Background(), "", "", makeTestClip(t))
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, src.Play())

	select {
	case tick := <-src.FrameReady():
		assert.Greater(t, tick.Position, time.Duration(0))
	case <-time.After(2 * time.Second):
		t.Fatal("no frame tick after Play")
	}
	require.Eventually(t, func() bool {
		return src.Position() > 100*time.Millisecond
	}, 3*time.Second, 20*time.Millisecond)

	src.Pause()
	assert.True(t, src.Paused())
	// Let any in-flight frame read settle before sampling the position.
	time.Sleep(150 * time.Millisecond)
	held := src.Position()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, held, src.Position(), "position holds while paused")
}

func TestFileSource_SeekConfirmsAtNewOffset(t *testing.T) {
	if !toolsAvailable() {
		t.Skip("ffmpeg/ffprobe not available, skipping integration test")
	}

	src, err := Open(context.Background(), "", "", makeTestClip(t))
	require.NoError(t, err)
	defer src.Close()

	src.SetPosition(time.Second)

	select {
	case pos := <-src.Seeked():
		assert.Equal(t, time.Second, pos)
	case <-time.After(3 * time.Second):
		t.Fatal("seek was never confirmed")
	}
	assert.Equal(t, time.Second, src.Position())

	img, err := src.Frame()
	require.NoError(t, err)
	assert.NotNil(t, img)
}

func TestFileSource_PlaysToEnd(t *testing.T) {
	if !toolsAvailable() {
		t.Skip("ffmpeg/ffprobe not available, skipping integration test")
	}

	src, err := Open(context.Background(), "", "", makeTestClip(t))
	require.NoError(t, err)
	defer src.Close()

	src.SetPosition(src.Duration() - 200*time.Millisecond)
	select {
	case <-src.Seeked():
	case <-time.After(3 * time.Second):
		t.Fatal("seek was never confirmed")
	}

	require.NoError(t, src.Play())
	require.Eventually(t, src.Ended, 5*time.Second, 50*time.Millisecond,
		"playback should run past the last frame")
	assert.Equal(t, src.Duration(), src.Position())
	assert.True(t, src.Paused())
}

func TestFileSource_CloseIsIdempotent(t *testing.T) {
	if !toolsAvailable() {
		t.Skip("ffmpeg/ffprobe not available, skipping integration test")
	}

	src, err := Open(context.Background(), "", "", makeTestClip(t))
	require.NoError(t, err)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err = src.Frame()
	assert.Error(t, err)
	assert.Error(t, src.Play())
}
