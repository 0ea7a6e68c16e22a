package cli

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tyrowin/chatrelay/internal/config"
	"github.com/Tyrowin/chatrelay/internal/server"
)

type loadFunc func() (config.Config, error)

func newServeCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat relay until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

// serve runs a relay with cfg until ctx is done, then shuts it down.
func serve(ctx context.Context, cfg config.Config) error {
	log.Printf("Starting chatrelay %s...", Version)

	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	log.Println("Shutdown signal received")

	return srv.Shutdown(cfg.Shutdown.Timeout)
}
