package orders

import (
	"context"
	"errors"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/dispatch"
)

// Processor turns upstream order events into dispatch operations.
type Processor struct {
	dispatch DispatchPort
	logger   logx.Logger
	factory  *actionFactory
}

// NewProcessor creates a new orders.Processor
func NewProcessor(d DispatchPort, logger logx.Logger) *Processor {
	if logger == nil {
		logger = logx.Nop()
	}
	p := &Processor{
		dispatch: d,
		logger:   logger,
	}
	p.factory = newActionFactory(p.onCreated, p.onCanceled)
	return p
}

// Handle processes a single orders.Event. Unknown statuses are ignored.
func (p *Processor) Handle(ctx context.Context, e Event) error {
	if p.factory == nil {
		return nil
	}
	fn, ok := p.factory.get(e.Status)
	if !ok {
		p.logger.Debug("order event ignored", logx.OrderID(e.OrderID), logx.String("status", e.Status))
		return nil
	}
	return fn(ctx, e)
}

func (p *Processor) onCreated(ctx context.Context, e Event) error {
	_, created, err := p.dispatch.Publish(ctx, dispatch.NewOrder{
		ID:        e.OrderID,
		Requester: e.Requester,
		CreatedAt: e.CreatedAt,
	})
	if err != nil {
		return err
	}
	if !created {
		p.logger.Debug("order already published", logx.OrderID(e.OrderID))
	}
	return nil
}

func (p *Processor) onCanceled(ctx context.Context, e Event) error {
	_, err := p.dispatch.Cancel(ctx, e.OrderID, e.Actor())
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	case errors.Is(err, apperr.ErrConflict):
		p.logger.Warn("cancel of finished order ignored", logx.OrderID(e.OrderID), logx.Err(err))
		return nil
	}
	return err
}
