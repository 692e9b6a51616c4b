package dispatch

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/ordertx"
)

// Chooser inspects the latest version of an order and returns the entry to append,
// nil to leave the log untouched, or an error to abort.
type Chooser func(o domain.Order) (*domain.Decision, error)

// Machine guards every append to an order's decision log.
type Machine struct {
	tx    ordertx.Runner
	clock clockwork.Clock
}

// NewMachine creates a Machine over a transactional order log.
func NewMachine(tx ordertx.Runner, clock clockwork.Clock) *Machine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Machine{tx: tx, clock: clock}
}

// AppendDecision appends d if the order's current status is still expected.
func (m *Machine) AppendDecision(ctx context.Context, orderID string, d domain.Decision, expected domain.Status) (domain.Order, error) {
	o, _, err := m.Decide(ctx, orderID, func(o domain.Order) (*domain.Decision, error) {
		if cur := o.Status(); cur != expected {
			return nil, fmt.Errorf("%w: order %s is %s, expected %s", apperr.ErrConflict, o.ID, cur, expected)
		}
		return &d, nil
	})
	return o, err
}

// Decide runs choose under the order's row lock and persists the chosen entry.
// It reports whether an entry was appended.
func (m *Machine) Decide(ctx context.Context, orderID string, choose Chooser) (domain.Order, bool, error) {
	var (
		out      domain.Order
		appended bool
	)
	err := m.tx.WithTx(ctx, func(tx ordertx.Repository) error {
		o, err := tx.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		d, err := choose(o)
		if err != nil {
			return err
		}
		if d == nil {
			out = o
			return nil
		}
		if d.Kind == "" {
			d.Kind = domain.KindTransition
		}
		if err := validateEntry(o, *d); err != nil {
			return err
		}

		d.At = m.clock.Now().UTC()
		if last := o.LastAt(); d.At.Before(last) {
			d.At = last
		}
		o.Apply(*d)
		if err := tx.AppendDecision(ctx, *d, o); err != nil {
			return err
		}
		out, appended = o, true
		return nil
	})
	if err != nil {
		return domain.Order{}, false, err
	}
	return out, appended, nil
}

func validateEntry(o domain.Order, d domain.Decision) error {
	if !d.Actor.Valid() {
		return fmt.Errorf("%w: decision without actor", apperr.ErrInvalid)
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", apperr.ErrInvalid, d.Status)
	}
	cur := o.Status()
	if cur.Terminal() {
		return fmt.Errorf("%w: order %s is %s", apperr.ErrConflict, o.ID, cur)
	}
	if d.Kind.PartnerScoped() {
		if cur != domain.StatusPending || d.Status != domain.StatusCancelled {
			return fmt.Errorf("%w: decline on %s order %s", apperr.ErrConflict, cur, o.ID)
		}
		return nil
	}
	if !domain.CanTransition(cur, d.Status) {
		return fmt.Errorf("%w: %s -> %s on order %s", apperr.ErrConflict, cur, d.Status, o.ID)
	}
	return nil
}
