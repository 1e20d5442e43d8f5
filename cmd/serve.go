package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/babelcloud/vidcap/config"
	"github.com/babelcloud/vidcap/internal/server"
)

func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the capture HTTP server",
		Long:  "Run an HTTP server exposing frame sampling, clip recording and live job progress over websockets.",
		Example: `  vidcap serve
  vidcap serve --addr :9280`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", config.GetServeAddr(), "Listen address")

	return cmd
}

func runServe(addr string) error {
	srv := server.New(addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down\n", sig)
		return srv.Stop()
	}
}
