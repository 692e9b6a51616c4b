package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.uber.org/dig"
	"golang.org/x/sync/errgroup"

	"courier-dispatch/internal/http/pprofserver"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/realtime"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/transport/kafka"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the HTTP dispatch service.
type Runner struct {
	runFn func(*dig.Container) error
	exit  func(int)
}

// NewRunner returns a new Runner
func NewRunner() *Runner {
	return &Runner{runFn: run, exit: os.Exit}
}

// MustRun runs the service until the container context is done.
func (r *Runner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil {
		return
	}
	logger := containerLogger(container)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown requested, exiting")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("startup aborted: startup timeout exceeded")
	default:
		logger.Error("run error", logx.Err(err))
		exit := r.exit
		if exit == nil {
			exit = os.Exit
		}
		exit(1)
	}
}

func containerLogger(container *dig.Container) logx.Logger {
	var logger logx.Logger
	if err := container.Invoke(func(l logx.Logger) { logger = l }); err != nil || logger == nil {
		return logx.NewSlogAdapter(slog.Default())
	}
	return logger
}

type appIn struct {
	dig.In
	Ctx      context.Context
	Logger   logx.Logger
	Server   *http.Server
	Hub      *realtime.Hub
	Sweeper  *dispatch.Sweeper
	Pprof    *pprofserver.Server `optional:"true"`
	Consumer *kafka.Consumer     `optional:"true"`
	Closers  *closers
}

func run(container *dig.Container) error {
	var runErr error
	if err := container.Invoke(func(in appIn) { runErr = appRun(in) }); err != nil {
		return err
	}
	return runErr
}

func appRun(in appIn) error {
	defer in.Closers.closeAll(in.Logger)

	g, gctx := errgroup.WithContext(in.Ctx)
	g.Go(func() error { return serveHTTP(gctx, in.Server, in.Hub, in.Logger) })
	g.Go(func() error { return in.Sweeper.Run(gctx) })
	g.Go(func() error { return in.Pprof.Run(gctx) })
	if in.Consumer != nil {
		g.Go(func() error { return in.Consumer.Run(gctx) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return in.Ctx.Err()
}

func serveHTTP(ctx context.Context, server *http.Server, hub *realtime.Hub, logger logx.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("service-dispatch listening", logx.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down service-dispatch")
	hub.Close()
	gracefulShutdown(server, logger, shutdownTimeout)
	return nil
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Warn("graceful shutdown error", logx.Err(err))
	}
}
