package sampler

import (
	"bytes"
	"errors"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelcloud/vidcap/internal/capture/core"
	"github.com/babelcloud/vidcap/internal/capture/sourcetest"
)

func newHandle(cfg sourcetest.Config) (*core.Handle, *sourcetest.Source) {
	src := sourcetest.New(cfg)
	return core.NewHandle(src), src
}

func TestSampler_EmptyRangeResolvesEmpty(t *testing.T) {
	h, src := newHandle(sourcetest.Config{Duration: 10 * time.Second})
	s := New(Options{})

	calls := 0
	for _, rng := range []core.TimeRange{
		{Start: 2 * time.Second, End: 2 * time.Second},
		{Start: 3 * time.Second, End: 1 * time.Second},
	} {
		frames, err := s.Sample(h, rng, core.CropArea{Width: 100, Height: 100}, func(done, total int) { calls++ })
		require.NoError(t, err)
		assert.Nil(t, frames)
	}
	assert.Zero(t, calls, "progress must not fire for an empty range")
	assert.Zero(t, src.SeekRequests(), "the source must not be touched")
}

func TestSampler_PlanIsDeterministic(t *testing.T) {
	rng := core.TimeRange{Start: 0, End: 3 * time.Second}

	a := PlanTimestamps(rng, 90)
	b := PlanTimestamps(rng, 90)
	require.Len(t, a, 90)
	assert.Equal(t, a, b)

	assert.Equal(t, time.Duration(0), a[0])
	for i := 1; i < len(a); i++ {
		assert.Greater(t, a[i], a[i-1], "timestamps must be strictly increasing")
	}
	assert.Less(t, a[len(a)-1], rng.End, "last timestamp stays inside the range")
}

func TestSampler_FullBudgetOverThreeSeconds(t *testing.T) {
	h, _ := newHandle(sourcetest.Config{Duration: 10 * time.Second, ConfirmSeeks: true})
	s := New(Options{BoxSize: 64})

	rng := core.TimeRange{Start: 0, End: 3 * time.Second}
	frames, err := s.Sample(h, rng, core.CropArea{Width: 200, Height: 200}, nil)
	require.NoError(t, err)
	require.Len(t, frames, 90)

	want := PlanTimestamps(rng, 90)
	for i, f := range frames {
		assert.Equal(t, want[i], f.Timestamp)
		assert.Equal(t, "image/jpeg", f.MIME)
		assert.NotEmpty(t, f.Data)
	}
	assert.False(t, h.Busy(), "lease must be released after a run")
}

func TestSampler_ShortRangeCapsPlan(t *testing.T) {
	h, _ := newHandle(sourcetest.Config{Duration: 10 * time.Second, ConfirmSeeks: true})
	s := New(Options{BoxSize: 32})

	frames, err := s.Sample(h, core.TimeRange{Start: 0, End: time.Second}, core.CropArea{Width: 64, Height: 64}, nil)
	require.NoError(t, err)
	assert.Len(t, frames, 30, "one second at 30fps holds 30 frames")

	frames, err = s.Sample(h, core.TimeRange{Start: 0, End: 10 * time.Millisecond}, core.CropArea{Width: 64, Height: 64}, nil)
	require.NoError(t, err)
	assert.Len(t, frames, 1, "a sub-frame range still yields one still")
}

func TestSampler_ProgressSequence(t *testing.T) {
	h, _ := newHandle(sourcetest.Config{Duration: 10 * time.Second, ConfirmSeeks: true})
	s := New(Options{FrameBudget: 5, BoxSize: 32})

	type call struct{ done, total int }
	var calls []call
	frames, err := s.Sample(h, core.TimeRange{Start: 0, End: 5 * time.Second}, core.CropArea{Width: 64, Height: 64}, func(done, total int) {
		calls = append(calls, call{done, total})
	})
	require.NoError(t, err)
	require.Len(t, frames, 5)

	require.Len(t, calls, 5)
	for i, c := range calls {
		assert.Equal(t, call{i + 1, 5}, c)
	}
}

func TestSampler_FrameErrorAbortsWithoutPartial(t *testing.T) {
	h, _ := newHandle(sourcetest.Config{
		Duration: 10 * time.Second,
		FrameErr: errors.New("decoder gone"),
	})
	s := New(Options{FrameBudget: 5, BoxSize: 32})

	calls := 0
	frames, err := s.Sample(h, core.TimeRange{Start: 0, End: 5 * time.Second}, core.CropArea{Width: 64, Height: 64}, func(done, total int) { calls++ })

	var perr *core.PlaybackError
	require.ErrorAs(t, err, &perr)
	assert.Nil(t, frames, "a hard failure returns no partial batch")
	assert.Zero(t, calls)
	assert.False(t, h.Busy(), "lease must be released on failure")
}

func TestSampler_CropOutsideNativeRejected(t *testing.T) {
	h, src := newHandle(sourcetest.Config{Duration: 10 * time.Second})
	s := New(Options{})

	_, err := s.Sample(h, core.TimeRange{Start: 0, End: time.Second}, core.CropArea{X: 700, Width: 100, Height: 100}, nil)

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, src.SeekRequests())
}

func TestSampler_RangeBeyondDurationRejected(t *testing.T) {
	h, _ := newHandle(sourcetest.Config{Duration: 10 * time.Second})
	s := New(Options{})

	_, err := s.Sample(h, core.TimeRange{Start: 0, End: 20 * time.Second}, core.CropArea{Width: 100, Height: 100}, nil)

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSampler_BusySourceRejected(t *testing.T) {
	h, _ := newHandle(sourcetest.Config{Duration: 10 * time.Second, ConfirmSeeks: true})
	s := New(Options{FrameBudget: 2, BoxSize: 32})

	release, err := h.Acquire("clip")
	require.NoError(t, err)

	_, err = s.Sample(h, core.TimeRange{Start: 0, End: time.Second}, core.CropArea{Width: 64, Height: 64}, nil)
	var rerr *core.ResourceError
	require.ErrorAs(t, err, &rerr)

	release()
	frames, err := s.Sample(h, core.TimeRange{Start: 0, End: time.Second}, core.CropArea{Width: 64, Height: 64}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, frames)
}

func TestSampler_StillFitsBox(t *testing.T) {
	h, _ := newHandle(sourcetest.Config{Duration: 10 * time.Second, ConfirmSeeks: true})
	s := New(Options{FrameBudget: 1, BoxSize: 64})

	frames, err := s.Sample(h, core.TimeRange{Start: 0, End: time.Second}, core.CropArea{Width: 640, Height: 480}, nil)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	img, err := jpeg.Decode(bytes.NewReader(frames[0].Data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx(), "long side bound to the box")
	assert.Equal(t, 48, img.Bounds().Dy(), "short side keeps the aspect")
	assert.Equal(t, 64, frames[0].Width)
	assert.Equal(t, 48, frames[0].Height)
}
