package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/babelcloud/vidcap/config"
	"github.com/babelcloud/vidcap/internal/capture/sampler"
	"github.com/babelcloud/vidcap/internal/preset"
)

type FramesOptions struct {
	captureOptions
	Budget  int
	Box     int
	Quality float64
	OutDir  string
}

func NewFramesCommand() *cobra.Command {
	opts := &FramesOptions{}

	cmd := &cobra.Command{
		Use:   "frames <media>",
		Short: "Sample JPEG stills from a region of a video",
		Long:  "Sample evenly spaced JPEG stills from a cropped region of a video file and write them to a directory.",
		Args:  cobra.ExactArgs(1),
		Example: `  vidcap frames recording.mp4 --crop 100,50,512x288
  vidcap frames recording.mp4 --start 1m --end 2m --crop 0,0,1280x720 --budget 30
  vidcap frames recording.mp4 --preset scoreboard -o stills/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFrames(cmd.Context(), args[0], opts)
		},
	}

	addCaptureFlags(cmd, &opts.captureOptions)
	flags := cmd.Flags()
	flags.IntVar(&opts.Budget, "budget", 0, "Max stills to capture")
	flags.IntVar(&opts.Box, "box", 0, "Bounding box for emitted stills")
	flags.Float64Var(&opts.Quality, "quality", 0, "JPEG quality in (0,1]")
	flags.StringVarP(&opts.OutDir, "output", "o", ".", "Directory for the JPEG files")

	return cmd
}

func runFrames(ctx context.Context, path string, opts *FramesOptions) error {
	p, err := preset.Default.Resolve(opts.Preset)
	if err != nil {
		return err
	}

	src, h, err := openSource(ctx, path)
	if err != nil {
		return err
	}
	defer src.Close()

	crop, err := resolveCrop(opts.captureOptions, p)
	if err != nil {
		return err
	}
	rng := resolveRange(opts.captureOptions, src.Info().Duration)

	s := sampler.New(sampler.Options{
		FrameBudget: firstPositive(opts.Budget, p.FrameBudget, config.GetFrameBudget()),
		BoxSize:     firstPositive(opts.Box, p.BoxSize, config.GetStillBox()),
		Quality:     firstPositiveF(opts.Quality, p.Quality, config.GetStillQuality()),
		CaptureFPS:  config.GetCaptureFPS(),
		SeekTimeout: config.GetSeekTimeout(),
	})

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	sampled := false
	frames, err := s.Sample(h, rng, crop, func(done, total int) {
		sampled = true
		fmt.Printf("\rSampling %d/%d", done, total)
	})
	if sampled {
		fmt.Println()
	}
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		fmt.Println("No frames in the requested range")
		return nil
	}

	for i, f := range frames {
		name := fmt.Sprintf("frame_%03d_%dms.jpg", i+1, f.Timestamp.Milliseconds())
		if err := os.WriteFile(filepath.Join(opts.OutDir, name), f.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	fmt.Printf("Wrote %d stills to %s\n", len(frames), color.CyanString(opts.OutDir))
	return nil
}
