package app

import (
	"context"
	"time"

	"courier-dispatch/internal/service/orders"
	"courier-dispatch/internal/transport/kafka"
)

type eventHandler interface {
	Handle(ctx context.Context, e orders.Event) error
}

// makeOrdersKafka bounds every upstream event by timeout. A zero timeout leaves ctx untouched.
func makeOrdersKafka(h eventHandler, timeout time.Duration) kafka.HandleFunc {
	return func(ctx context.Context, event orders.Event) error {
		if timeout <= 0 {
			return h.Handle(ctx, event)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return h.Handle(ctx, event)
	}
}
