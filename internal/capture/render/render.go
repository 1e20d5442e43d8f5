// Package render implements the raster path of the capture pipeline:
// cropping the source frame, bilinear scaling, aspect-preserving box
// fitting and JPEG compression.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"math"

	"github.com/babelcloud/vidcap/internal/capture/core"
)

// Render targets above this many pixels indicate a memory-limit risk on
// constrained hosts and are refused.
const maxTargetPixels = 1 << 24

// Crop copies the crop region of src into a fresh RGBA image. The crop is
// expected to be clamped already.
func Crop(src image.Image, c core.CropArea) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	origin := image.Pt(src.Bounds().Min.X+c.X, src.Bounds().Min.Y+c.Y)
	draw.Draw(dst, dst.Bounds(), src, origin, draw.Src)
	return dst
}

// Resize scales src to width x height with bilinear interpolation.
func Resize(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	resizeInto(dst, toRGBA(src))
	return dst
}

// FitBox scales w x h so the long side equals box, preserving aspect ratio.
// Dimensions never drop below 1.
func FitBox(w, h, box int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w >= h {
		fh := int(math.Round(float64(h) * float64(box) / float64(w)))
		if fh < 1 {
			fh = 1
		}
		return box, fh
	}
	fw := int(math.Round(float64(w) * float64(box) / float64(h)))
	if fw < 1 {
		fw = 1
	}
	return fw, box
}

// EncodeJPEG compresses img at the given quality factor in [0,1].
func EncodeJPEG(img image.Image, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	q := int(quality*100 + 0.5)
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Target is the exclusive render surface of one recording. It is created
// fresh per invocation and never shared.
type Target struct {
	rgba *image.RGBA
}

// NewTarget allocates a render surface, refusing sizes over the pixel
// budget.
func NewTarget(width, height int) (*Target, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("render target %dx%d has no area", width, height)
	}
	if width*height > maxTargetPixels {
		return nil, fmt.Errorf("render target %dx%d exceeds pixel budget", width, height)
	}
	return &Target{rgba: image.NewRGBA(image.Rect(0, 0, width, height))}, nil
}

// Size returns the target dimensions.
func (t *Target) Size() (width, height int) {
	b := t.rgba.Bounds()
	return b.Dx(), b.Dy()
}

// Draw renders the crop region of frame scaled into the target surface and
// returns the surface.
func (t *Target) Draw(frame image.Image, crop core.CropArea) *image.RGBA {
	resizeInto(t.rgba, Crop(frame, crop))
	return t.rgba
}

// Release drops the surface so it can be collected. The target must not be
// drawn to afterwards.
func (t *Target) Release() {
	t.rgba = nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}

func resizeInto(dst, src *image.RGBA) {
	dw, dh := dst.Bounds().Dx(), dst.Bounds().Dy()
	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	if dw == sw && dh == sh {
		copy(dst.Pix, src.Pix)
		return
	}

	xRatio := float64(sw) / float64(dw)
	yRatio := float64(sh) / float64(dh)

	for y := 0; y < dh; y++ {
		sy := (float64(y) + 0.5) * yRatio
		y0 := int(sy - 0.5)
		if y0 < 0 {
			y0 = 0
		}
		y1 := y0 + 1
		if y1 > sh-1 {
			y1 = sh - 1
		}
		fy := sy - 0.5 - float64(y0)
		if fy < 0 {
			fy = 0
		}

		for x := 0; x < dw; x++ {
			sx := (float64(x) + 0.5) * xRatio
			x0 := int(sx - 0.5)
			if x0 < 0 {
				x0 = 0
			}
			x1 := x0 + 1
			if x1 > sw-1 {
				x1 = sw - 1
			}
			fx := sx - 0.5 - float64(x0)
			if fx < 0 {
				fx = 0
			}

			di := dst.PixOffset(x, y)
			i00 := src.PixOffset(x0, y0)
			i10 := src.PixOffset(x1, y0)
			i01 := src.PixOffset(x0, y1)
			i11 := src.PixOffset(x1, y1)

			for c := 0; c < 4; c++ {
				top := float64(src.Pix[i00+c])*(1-fx) + float64(src.Pix[i10+c])*fx
				bottom := float64(src.Pix[i01+c])*(1-fx) + float64(src.Pix[i11+c])*fx
				dst.Pix[di+c] = uint8(top*(1-fy) + bottom*fy + 0.5)
			}
		}
	}
}
