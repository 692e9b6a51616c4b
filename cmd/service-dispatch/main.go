// Command service-dispatch serves the dispatch HTTP API and the partner websocket.
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

	app.NewRunner().MustRun(app.MustBuildContainer(ctx))
}
