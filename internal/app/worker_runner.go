package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/dig"
	"golang.org/x/sync/errgroup"

	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/transport/kafka"
)

// WorkerRunner runs the upstream order intake worker
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun runs the worker and panics on anything but a requested shutdown
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

type workerIn struct {
	dig.In
	Ctx      context.Context
	Logger   logx.Logger
	Consumer *kafka.Consumer `optional:"true"`
	Sweeper  *dispatch.Sweeper
	Closers  *closers
}

func runWorker(container *dig.Container) error {
	var runErr error
	if err := container.Invoke(func(in workerIn) {
		runErr = workerRun(in.Ctx, in.Logger, in.Consumer, in.Sweeper, in.Closers)
	}); err != nil {
		return err
	}
	return runErr
}

// workerRun consumes upstream order events and sweeps the offers this process made.
func workerRun(
	ctx context.Context,
	logger logx.Logger,
	consumer *kafka.Consumer,
	sweeper *dispatch.Sweeper,
	res *closers,
) error {
	defer res.closeAll(logger)
	if consumer == nil {
		return fmt.Errorf("kafka consumer is nil: worker container misconfigured")
	}

	logger.Info("service-dispatch-worker started")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Run(gctx) })
	if sweeper != nil {
		g.Go(func() error { return sweeper.Run(gctx) })
	}
	return g.Wait()
}
