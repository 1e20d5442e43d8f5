package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/babelcloud/vidcap/config"
	"github.com/babelcloud/vidcap/internal/capture/encode"
	"github.com/babelcloud/vidcap/internal/capture/source"
)

type ProbeOptions struct {
	OutputFormat string
}

func NewProbeCommand() *cobra.Command {
	opts := &ProbeOptions{}

	cmd := &cobra.Command{
		Use:   "probe <media>",
		Short: "Inspect a media file",
		Long:  "Print the duration, dimensions, frame rate and codec of a media file, and which clip encoders the local ffmpeg supports.",
		Args:  cobra.ExactArgs(1),
		Example: `  vidcap probe recording.mp4
  vidcap probe recording.mp4 --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputFormat, "output", "o", "text", "Output format (json or text)")
	cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "text"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runProbe(ctx context.Context, path string, opts *ProbeOptions) error {
	info, err := source.Probe(ctx, config.GetFFprobePath(), path)
	if err != nil {
		return err
	}

	available, encErr := encode.Probe(ctx, config.GetFFmpegPath())
	choice := encode.Select(available)

	if opts.OutputFormat == "json" {
		out := map[string]interface{}{
			"path":        path,
			"duration_ms": info.Duration.Milliseconds(),
			"width":       info.Width,
			"height":      info.Height,
			"fps":         info.FPS,
			"codec":       info.Codec,
			"encoders":    available,
			"clip_format": choice.MIME,
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	label := color.New(color.Faint)
	fmt.Printf("%s %s\n", label.Sprint("Path:"), path)
	fmt.Printf("%s %v\n", label.Sprint("Duration:"), info.Duration.Round(time.Millisecond))
	fmt.Printf("%s %s\n", label.Sprint("Size:"), color.CyanString("%dx%d", info.Width, info.Height))
	fmt.Printf("%s %d\n", label.Sprint("FPS:"), info.FPS)
	fmt.Printf("%s %s\n", label.Sprint("Codec:"), info.Codec)

	fmt.Println()
	if encErr != nil {
		fmt.Printf("%s %s\n", label.Sprint("Encoders:"), color.YellowString("probe failed: %v", encErr))
	} else {
		fmt.Println(label.Sprint("Encoders:"))
		for _, name := range []string{"libx264", "libvpx-vp9", "libvpx"} {
			status := color.RedString("missing")
			if available[name] {
				status = color.GreenString("available")
			}
			fmt.Printf("  %-11s %s\n", name, status)
		}
	}
	fmt.Printf("%s %s\n", label.Sprint("Clip format:"), color.CyanString(choice.MIME))
	return nil
}
