package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/babelcloud/vidcap/config"
	"github.com/babelcloud/vidcap/internal/capture/core"
	"github.com/babelcloud/vidcap/internal/capture/source"
	"github.com/babelcloud/vidcap/internal/preset"
)

// captureOptions holds the flag values shared by the frames and clip
// commands.
type captureOptions struct {
	Start  time.Duration
	End    time.Duration
	Crop   string
	Preset string
}

func addCaptureFlags(cmd *cobra.Command, o *captureOptions) {
	flags := cmd.Flags()
	flags.DurationVar(&o.Start, "start", 0, "Range start inside the media (e.g. 1m30s)")
	flags.DurationVar(&o.End, "end", 0, "Range end; defaults to the media duration")
	flags.StringVarP(&o.Crop, "crop", "c", "", "Crop region as X,Y,WxH (e.g. 100,50,512x288)")
	flags.StringVarP(&o.Preset, "preset", "P", "", "Named preset supplying defaults; the current preset applies when unset")
}

// openSource opens the media file and wraps it for the capture pipeline.
// The caller owns the returned source and must Close it.
func openSource(ctx context.Context, path string) (*source.FileSource, *core.Handle, error) {
	src, err := source.Open(ctx, config.GetFFmpegPath(), config.GetFFprobePath(), path)
	if err != nil {
		return nil, nil, err
	}
	return src, core.NewHandle(src), nil
}

// resolveRange fills the open end of the requested range with the media
// duration.
func resolveRange(o captureOptions, total time.Duration) core.TimeRange {
	end := o.End
	if end == 0 {
		end = total
	}
	return core.TimeRange{Start: o.Start, End: end}
}

// resolveCrop picks the crop from the flag or the preset, in that order.
func resolveCrop(o captureOptions, p preset.Preset) (core.CropArea, error) {
	spec := o.Crop
	if spec == "" {
		spec = p.Crop
	}
	if spec == "" {
		return core.CropArea{}, fmt.Errorf("a crop region is required; pass --crop or use a preset that has one")
	}
	return core.ParseCrop(spec)
}

// firstPositive returns the first value above zero, so explicit flags win
// over preset values, which win over configured defaults.
func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstPositiveF(vals ...float64) float64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
