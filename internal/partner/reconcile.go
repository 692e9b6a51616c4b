package partner

import (
	"context"
	"fmt"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// Reconcile pulls active and pending-live orders and corrects local state.
// Concurrent calls share one round trip.
func (a *Agent) Reconcile(ctx context.Context) error {
	_, err, _ := a.reconciles.Do("reconcile", func() (any, error) {
		return nil, a.reconcile(ctx)
	})
	return err
}

func (a *Agent) reconcile(ctx context.Context) error {
	active, err := a.server.ActiveOrders(ctx)
	if err != nil {
		return fmt.Errorf("active orders: %w", err)
	}
	pending, err := a.server.PendingLiveOrders(ctx)
	if err != nil {
		return fmt.Errorf("pending live orders: %w", err)
	}

	var (
		notices []Notice
		shown   *Offer
	)
	a.mu.Lock()
	notices = append(notices, a.reconcileCurrentLocked(active)...)
	notices = append(notices, a.reconcileOfferLocked(pending)...)
	if a.offer == nil && a.current == nil {
		for i := range pending {
			var n []Notice
			if shown, n = a.showLocked(&pending[i]); shown != nil {
				notices = append(notices, n...)
				break
			}
		}
	}
	a.mu.Unlock()

	a.logger.Debug("reconciled",
		logx.Int("active", len(active)),
		logx.Int("pending", len(pending)),
	)
	a.emit(notices)
	a.timer.Check()
	if shown != nil {
		a.autoDecide(ctx, shown.Order.ID)
	}
	return nil
}

func (a *Agent) reconcileCurrentLocked(active []domain.Order) []Notice {
	for i := range active {
		o := active[i]
		if o.Status() == domain.StatusConfirmed && o.AssignedTo() == a.partner {
			return a.setCurrentLocked(&o)
		}
	}
	return a.clearCurrentLocked()
}

// reconcileOfferLocked drops an offer the server no longer lists as pending for us.
// The decision already happened server-side, so no reject is sent.
func (a *Agent) reconcileOfferLocked(pending []domain.Order) []Notice {
	if a.offer == nil {
		return nil
	}
	id := a.offer.Order.ID
	if a.current != nil {
		return a.closeOfferLocked(id, ReasonStale)
	}
	for _, o := range pending {
		if o.ID == id && o.Status() == domain.StatusPending && !o.HasRejected(a.partner) {
			a.offer.Order = o.Clone()
			return nil
		}
	}
	return a.closeOfferLocked(id, ReasonStale)
}
