package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/babelcloud/vidcap/internal/capture/core"
	"github.com/babelcloud/vidcap/internal/preset"
)

func NewPresetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Manage capture presets",
		Long:  "Manage named capture presets: crop region, still budget and quality, clip bitrate and upscale factor.",
	}

	cmd.AddCommand(newPresetListCmd())
	cmd.AddCommand(newPresetAddCmd())
	cmd.AddCommand(newPresetRemoveCmd())
	cmd.AddCommand(newPresetUseCmd())

	return cmd
}

func newPresetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := preset.Default
			names := m.Names()
			if len(names) == 0 {
				fmt.Println("No presets defined")
				return nil
			}

			current := m.Current()
			data := make([]map[string]interface{}, 0, len(names))
			for _, name := range names {
				p, _ := m.Get(name)
				marker := ""
				if name == current {
					marker = "*"
				}
				data = append(data, map[string]interface{}{
					"current": marker,
					"name":    name,
					"crop":    p.Crop,
					"budget":  p.FrameBudget,
					"box":     p.BoxSize,
					"quality": p.Quality,
					"bitrate": p.Bitrate,
					"upscale": p.UpscaleTarget,
				})
			}

			renderTable([]TableColumn{
				{Header: " ", Key: "current"},
				{Header: "NAME", Key: "name"},
				{Header: "CROP", Key: "crop"},
				{Header: "BUDGET", Key: "budget"},
				{Header: "BOX", Key: "box"},
				{Header: "QUALITY", Key: "quality"},
				{Header: "BITRATE", Key: "bitrate"},
				{Header: "UPSCALE", Key: "upscale"},
			}, data)
			return nil
		},
	}
}

func newPresetAddCmd() *cobra.Command {
	var p preset.Preset

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or update a preset",
		Args:  cobra.ExactArgs(1),
		Example: `  vidcap preset add scoreboard --crop 100,50,512x288
  vidcap preset add hd --crop 0,0,1280x720 --bitrate 12000000 --upscale 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if p.Crop != "" {
				if _, err := core.ParseCrop(p.Crop); err != nil {
					return err
				}
			}
			if err := preset.Default.Add(args[0], p); err != nil {
				return err
			}
			fmt.Printf("Preset '%s' saved\n", args[0])
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&p.Crop, "crop", "c", "", "Crop region as X,Y,WxH")
	flags.IntVar(&p.FrameBudget, "budget", 0, "Max stills per sampling run")
	flags.IntVar(&p.BoxSize, "box", 0, "Bounding box for emitted stills")
	flags.Float64Var(&p.Quality, "quality", 0, "JPEG quality in (0,1]")
	flags.IntVar(&p.Bitrate, "bitrate", 0, "Clip bitrate in bits per second")
	flags.Float64Var(&p.UpscaleTarget, "upscale", 0, "Upscale factor for clips")

	return cmd
}

func newPresetRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := preset.Default.Remove(args[0]); err != nil {
				return err
			}
			fmt.Printf("Preset '%s' removed\n", args[0])
			return nil
		},
	}
}

func newPresetUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Make a preset the current default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := preset.Default.Use(args[0]); err != nil {
				return err
			}
			fmt.Printf("Now using preset '%s'\n", args[0])
			return nil
		},
	}
}
