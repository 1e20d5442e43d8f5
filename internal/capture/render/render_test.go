package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelcloud/vidcap/internal/capture/core"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestFitBox(t *testing.T) {
	// landscape: long side bound to the box
	w, h := FitBox(400, 300, 512)
	assert.Equal(t, 512, w)
	assert.Equal(t, 384, h)

	// portrait
	w, h = FitBox(300, 400, 512)
	assert.Equal(t, 384, w)
	assert.Equal(t, 512, h)

	// square
	w, h = FitBox(100, 100, 512)
	assert.Equal(t, 512, w)
	assert.Equal(t, 512, h)

	// extreme aspect never collapses to zero
	w, h = FitBox(2000, 1, 512)
	assert.Equal(t, 512, w)
	assert.Equal(t, 1, h)
}

func TestCrop_PixelRegion(t *testing.T) {
	src := solidImage(100, 100, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	// paint a distinct block at the crop origin
	for y := 40; y < 60; y++ {
		for x := 20; x < 50; x++ {
			src.SetRGBA(x, y, color.RGBA{R: 200, G: 0, B: 0, A: 255})
		}
	}

	got := Crop(src, core.CropArea{X: 20, Y: 40, Width: 30, Height: 20})
	assert.Equal(t, 30, got.Bounds().Dx())
	assert.Equal(t, 20, got.Bounds().Dy())
	assert.Equal(t, color.RGBA{R: 200, G: 0, B: 0, A: 255}, got.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 200, G: 0, B: 0, A: 255}, got.RGBAAt(29, 19))
}

func TestResize_PreservesSolidColor(t *testing.T) {
	c := color.RGBA{R: 120, G: 80, B: 40, A: 255}
	got := Resize(solidImage(64, 48, c), 256, 192)
	assert.Equal(t, 256, got.Bounds().Dx())
	assert.Equal(t, 192, got.Bounds().Dy())
	assert.Equal(t, c, got.RGBAAt(0, 0))
	assert.Equal(t, c, got.RGBAAt(128, 96))
	assert.Equal(t, c, got.RGBAAt(255, 191))
}

func TestEncodeJPEG_RoundTrip(t *testing.T) {
	data, err := EncodeJPEG(solidImage(32, 16, color.RGBA{R: 90, G: 90, B: 90, A: 255}), 0.95)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 32, decoded.Bounds().Dx())
	assert.Equal(t, 16, decoded.Bounds().Dy())
}

func TestNewTarget_PixelBudget(t *testing.T) {
	target, err := NewTarget(1920, 1920)
	require.NoError(t, err)
	w, h := target.Size()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1920, h)
	target.Release()

	_, err = NewTarget(8192, 8192)
	require.Error(t, err)

	_, err = NewTarget(0, 100)
	require.Error(t, err)
}

func TestTarget_DrawCropScales(t *testing.T) {
	src := solidImage(200, 200, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	for y := 50; y < 100; y++ {
		for x := 50; x < 100; x++ {
			src.SetRGBA(x, y, color.RGBA{R: 250, G: 250, B: 250, A: 255})
		}
	}

	target, err := NewTarget(100, 100)
	require.NoError(t, err)
	defer target.Release()

	out := target.Draw(src, core.CropArea{X: 50, Y: 50, Width: 50, Height: 50})
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, color.RGBA{R: 250, G: 250, B: 250, A: 255}, out.RGBAAt(50, 50))
}
