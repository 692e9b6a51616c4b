// Command dispatch-worker consumes upstream order events from Kafka,
// offers new orders to on-duty partners and expires stale offers.
// Partner events leave the process over NATS when NATS_URL is set.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"courier-dispatch/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.NewWorkerRunner().MustRun(app.MustBuildWorkerContainer(ctx))
}
