package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/contrastkit/contrastkit/config"
	"github.com/contrastkit/contrastkit/internal/server"
	"github.com/contrastkit/contrastkit/log"
	"github.com/contrastkit/contrastkit/tracing"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, appConfig, appLogger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger log.Logger) error {
	logger.Info(ctx, "Starting contrastkit", log.Fields{
		"http_addr": cfg.HTTPAddr,
		"kv_driver": cfg.KV.Driver,
		"limiter":   cfg.RateLimit.Backend,
		"tracing":   cfg.Telemetry.TracingEnabled,
	})

	if cfg.Telemetry.TracingEnabled {
		tp, err := tracing.InitTracerProvider(cfg.Telemetry.ServiceName, nil)
		if err != nil {
			return err
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error(context.Background(), "TracerProvider shutdown error", err)
			}
		}()
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Error(context.Background(), "Failed to release resources", err)
		}
	}()

	srv := server.NewHTTPServer(cfg.HTTPAddr, a.api.NewEcho())
	if err := server.Run(ctx, srv, logger); err != nil {
		return err
	}

	logger.Info(context.Background(), "Server gracefully stopped.")

	return nil
}
