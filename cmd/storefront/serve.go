package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"storefront/internal/app"
)

func newServeCmd(rt *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := fx.New(app.Options(rt.cfg))

			startCtx, cancel := context.WithTimeout(cmd.Context(), a.StartTimeout())
			defer cancel()
			if err := a.Start(startCtx); err != nil {
				return err
			}

			select {
			case <-cmd.Context().Done():
				rt.logger.Info().Msg("shutdown signal received")
			case sig := <-a.Wait():
				rt.logger.Info().Int("exit_code", sig.ExitCode).Msg("app requested shutdown")
			}

			stopCtx, stopCancel := context.WithTimeout(context.Background(), a.StopTimeout())
			defer stopCancel()
			return a.Stop(stopCtx)
		},
	}
}
