package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bakkerme/newsfeed/internal/core"
	"github.com/bakkerme/newsfeed/internal/observability/metrics"
	"github.com/bakkerme/newsfeed/internal/observability/otelx"
	"github.com/bakkerme/newsfeed/internal/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var syncOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, the sync worker and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, env, logger, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := otelx.Init(ctx, env.OTel, server.Version, logger)
			if err != nil {
				return err
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracing(flushCtx); err != nil {
					logger.Warn("otel shutdown failed", "error", err)
				}
			}()

			backend, err := openStore(ctx, doc, logger)
			if err != nil {
				return err
			}
			defer backend.Close()

			var collector *metrics.Collector
			if doc.Server.Metrics {
				collector = metrics.NewCollector("newsfeed")
			}

			run, err := buildRunner(doc, env, backend, collector, logger)
			if err != nil {
				return err
			}
			if err := run.Start(ctx, buildTriggers(doc, logger)...); err != nil {
				return err
			}
			if syncOnStart {
				run.Submit(core.TriggerEvent{Source: "startup"})
			}

			srv := server.New(buildReader(doc, backend, logger), run, backend, collector, server.Options{
				CORSOrigins: doc.Server.CORSOrigins,
				AccessLog:   doc.Server.AccessLog,
			}, logger)
			serveErr := make(chan error, 1)
			go func() {
				serveErr <- srv.Start(doc.Server.Addr)
			}()

			select {
			case <-ctx.Done():
				logger.Info("shutting down")
			case err := <-serveErr:
				if err != nil {
					stop()
					<-run.Done()
					return fmt.Errorf("http server: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), doc.Server.ShutdownTimeout.Std())
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown failed", "error", err)
			}
			// The worker finishes its current cycle before the store closes.
			<-run.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&syncOnStart, "sync-on-start", true, "queue a sync cycle as soon as the server starts")
	return cmd
}
