package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"competitor-knowledge/internal/bootstrap"
	"competitor-knowledge/internal/shared/config"
	"competitor-knowledge/internal/shared/server"
	"competitor-knowledge/internal/shared/telemetry"
	"competitor-knowledge/internal/workerproc"
)

func main() {
	cfg := config.Load()
	telemetry.Configure(cfg.Env, os.Getenv("LOG_LEVEL"))
	defer telemetry.Sync()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		telemetry.Error("api.bootstrap_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: server.Addr(cfg.Port), Handler: app.Router}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		telemetry.Info("api.started", map[string]any{"addr": srv.Addr, "queue_backend": cfg.QueueBackend})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// The in-memory queue lives in this process, so its consumer must too.
	if cfg.QueueBackend == "memory" && app.Receiver != nil {
		g.Go(func() error {
			return workerproc.Consume(gctx, app.Receiver, app.Pipeline, cfg.WorkerConcurrency)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		telemetry.Error("api.stopped", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	telemetry.Info("api.stopped", nil)
}
