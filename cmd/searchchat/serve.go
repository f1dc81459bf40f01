package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/searchchat/internal/message"
	"github.com/mohammad-safakhou/searchchat/internal/runtime"
	"github.com/mohammad-safakhou/searchchat/internal/server"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP chat API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			addr := a.cfg.Server.Address
			if serveAddr != "" {
				addr = serveAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tracing, err := runtime.SetupTelemetry(ctx, a.cfg.Telemetry, runtime.TelemetryOptions{ServiceVersion: version})
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracing.Shutdown(shutdownCtx); err != nil {
					a.log.WithError(err).Warn("telemetry shutdown")
				}
			}()

			log := logrus.NewEntry(a.log)
			e := server.New(server.Options{
				Chat:               a.orchestrator,
				Parser:             message.NewParser(log.WithField("component", "parser")),
				Telemetry:          a.telemetry,
				Logger:             log,
				AllowedOrigins:     a.cfg.Server.AllowedOrigins,
				MaxRequestDuration: a.cfg.Server.MaxRequestDuration,
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.Serve(gctx, e, addr, log.WithField("component", "http"))
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info("shutdown requested")
				return nil
			})
			return g.Wait()
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")
	return serve
}
