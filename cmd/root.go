package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/babelcloud/vidcap/internal/util"
	"github.com/babelcloud/vidcap/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "vidcap",
	Short: "Video region capture tool",
	Long: `vidcap samples JPEG stills and records clips from a region of a video
file. It crops, upscales and re-encodes on the fly, and can run as an HTTP
server exposing the same pipeline.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		util.InitLogger(verbose)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flag("version").Changed {
			info := version.ClientInfo()
			fmt.Printf("vidcap version %s, build %s\n", info["Version"], info["GitCommit"])
			return nil
		}
		return cmd.Help()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information and exit")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	rootCmd.AddCommand(NewProbeCommand())
	rootCmd.AddCommand(NewFramesCommand())
	rootCmd.AddCommand(NewClipCommand())
	rootCmd.AddCommand(NewPresetCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewVersionCommand())
}
