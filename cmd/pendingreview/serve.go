package main

import (
	"context"
	"os"

	"github.com/metalagman/pendingreview/internal/app"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(repoRoot)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.HTTP.Listen = listen
			}

			fxApp := fx.New(app.Server(cfg))
			if err := fxApp.Start(cmd.Context()); err != nil {
				return err
			}
			sig := <-fxApp.Wait()
			log.Info().Str("signal", sig.Signal.String()).Msg("shutting down")

			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			return fxApp.Stop(stopCtx)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "address to listen on (overrides http.listen)")
	return cmd
}
