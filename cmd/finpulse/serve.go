package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/finpulse-backend/internal/app"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled suggestion pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, app.Options{}, func(a *app.App) error {
				sched, err := a.NewScheduler()
				if err != nil {
					return err
				}
				srv, err := a.NewServer()
				if err != nil {
					return err
				}

				sched.Start(ctx)
				defer sched.Stop()

				errCh := make(chan error, 1)
				go func() { errCh <- srv.Run() }()
				a.Log.Info("Server listening", "addr", a.Cfg.HTTPAddr)

				select {
				case err := <-errCh:
					return err
				case <-ctx.Done():
				}
				a.Log.Info("Shutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return err
				}
				return <-errCh
			})
		},
	}
}
