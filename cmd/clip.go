package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/babelcloud/vidcap/config"
	"github.com/babelcloud/vidcap/internal/capture/recorder"
	"github.com/babelcloud/vidcap/internal/preset"
)

type ClipOptions struct {
	captureOptions
	Bitrate int
	Upscale float64
	Output  string
}

func NewClipCommand() *cobra.Command {
	opts := &ClipOptions{}

	cmd := &cobra.Command{
		Use:   "clip <media>",
		Short: "Record a re-encoded clip from a region of a video",
		Long:  "Record a range of a video file, cropped and upscaled, into a freshly encoded clip.",
		Args:  cobra.ExactArgs(1),
		Example: `  vidcap clip recording.mp4 --start 30s --end 45s --crop 100,50,512x288
  vidcap clip recording.mp4 --preset scoreboard --bitrate 4000000 -o goal.mp4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClip(cmd.Context(), args[0], opts)
		},
	}

	addCaptureFlags(cmd, &opts.captureOptions)
	flags := cmd.Flags()
	flags.IntVar(&opts.Bitrate, "bitrate", 0, "Target bitrate in bits per second")
	flags.Float64Var(&opts.Upscale, "upscale", 0, "Upscale factor for the cropped region")
	flags.StringVarP(&opts.Output, "output", "o", "", "Output file; defaults to clip.<ext> per the negotiated container")

	return cmd
}

func runClip(ctx context.Context, path string, opts *ClipOptions) error {
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

	rec := recorder.New(recorder.Options{
		Bitrate:          firstPositive(opts.Bitrate, p.Bitrate, config.GetBitrate()),
		FPS:              config.GetCaptureFPS(),
		UpscaleTarget:    firstPositiveF(opts.Upscale, p.UpscaleTarget, config.GetUpscaleTarget()),
		MaxDimension:     config.GetMaxDimension(),
		SeekTimeout:      config.GetSeekTimeout(),
		WatchdogGrace:    config.GetWatchdogGrace(),
		MuteRestoreDelay: config.GetMuteRestoreDelay(),
		FFmpegPath:       config.GetFFmpegPath(),
	})

	clip, err := rec.Record(h, rng, crop)
	if err != nil {
		return err
	}

	out := opts.Output
	if out == "" {
		out = "clip" + extensionForMIME(clip.MIME)
	}
	if err := os.WriteFile(out, clip.Data, 0o644); err != nil {
		return fmt.Errorf("write clip: %w", err)
	}

	fmt.Printf("Wrote %s (%dx%d, %v, %s)\n",
		color.CyanString(out), clip.Width, clip.Height,
		clip.Duration.Round(time.Millisecond), formatBytes(len(clip.Data)))
	return nil
}

func extensionForMIME(mime string) string {
	switch mime {
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	default:
		return ".bin"
	}
}
