// Package bounds holds the pure geometry and scaling rules for capture:
// crop clamping against the native frame and upscale-factor selection under
// a maximum-dimension limit.
package bounds

import (
	"fmt"

	"github.com/babelcloud/vidcap/internal/capture/core"
)

// ComputeUpscale picks the scale factor for a cropped region. It starts
// from targetFactor and backs off so that neither scaled dimension exceeds
// maxDim. The result is never below 1.
func ComputeUpscale(cropW, cropH int, targetFactor float64, maxDim int) float64 {
	scale := targetFactor
	if float64(cropW)*scale > float64(maxDim) {
		scale = float64(maxDim) / float64(cropW)
	}
	if float64(cropH)*scale > float64(maxDim) {
		scale = float64(maxDim) / float64(cropH)
	}
	if scale < 1 {
		scale = 1
	}
	return scale
}

// ClampCrop clips the crop into the native frame: origin raised to 0,
// width/height shrunk to fit. A crop left without area is rejected.
func ClampCrop(crop core.CropArea, nativeW, nativeH int) (core.CropArea, error) {
	c := crop
	if c.X < 0 {
		c.X = 0
	}
	if c.Y < 0 {
		c.Y = 0
	}
	if c.X+c.Width > nativeW {
		c.Width = nativeW - c.X
	}
	if c.Y+c.Height > nativeH {
		c.Height = nativeH - c.Y
	}
	if c.Width <= 0 || c.Height <= 0 {
		return core.CropArea{}, &core.ValidationError{
			Reason: fmt.Sprintf("crop %s has no area inside %dx%d", crop, nativeW, nativeH),
		}
	}
	return c, nil
}
