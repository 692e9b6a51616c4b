package duty

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// Service tracks which partners are on duty. A partner counts as on duty only
// while its last heartbeat is younger than the TTL.
type Service struct {
	store  Store
	orders OrderLister
	ttl    time.Duration
	clock  clockwork.Clock
	logger logx.Logger
}

// NewService creates a duty Service. A zero ttl disables heartbeat expiry.
func NewService(store Store, orders OrderLister, ttl time.Duration, clock clockwork.Clock, logger logx.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{store: store, orders: orders, ttl: ttl, clock: clock, logger: logger}
}

// SetDuty switches p on or off duty. Going off duty while an order is still
// CONFIRMED to p fails with ErrConflict.
func (s *Service) SetDuty(ctx context.Context, p domain.PartnerID, on bool) (domain.DutySession, error) {
	if !p.Valid() {
		return domain.DutySession{}, fmt.Errorf("%w: empty partner id", apperr.ErrInvalid)
	}
	if !on {
		active, err := s.orders.List(ctx, domain.OrderFilter{
			Statuses:   []domain.Status{domain.StatusConfirmed},
			AssignedTo: p,
		})
		if err != nil {
			return domain.DutySession{}, fmt.Errorf("list active orders: %w", err)
		}
		if len(active) > 0 {
			return domain.DutySession{}, fmt.Errorf("%w: %s still holds order %s", apperr.ErrConflict, p, active[0].ID)
		}
	}

	sess := domain.DutySession{Partner: p, OnDuty: on, LastHeartbeat: s.clock.Now().UTC()}
	if err := s.store.Put(ctx, sess); err != nil {
		return domain.DutySession{}, fmt.Errorf("store duty session: %w", err)
	}
	s.logger.Info("duty status changed",
		logx.Event("duty_changed"),
		logx.Partner(p),
		logx.Bool("on_duty", on),
	)
	return sess, nil
}

// Heartbeat refreshes the session of p without changing its duty flag.
func (s *Service) Heartbeat(ctx context.Context, p domain.PartnerID) (domain.DutySession, error) {
	if !p.Valid() {
		return domain.DutySession{}, fmt.Errorf("%w: empty partner id", apperr.ErrInvalid)
	}
	sess, _, err := s.store.Get(ctx, p)
	if err != nil {
		return domain.DutySession{}, fmt.Errorf("load duty session: %w", err)
	}
	sess.Partner = p
	sess.LastHeartbeat = s.clock.Now().UTC()
	if err := s.store.Put(ctx, sess); err != nil {
		return domain.DutySession{}, fmt.Errorf("store duty session: %w", err)
	}
	s.logger.Debug("heartbeat", logx.Partner(p), logx.Bool("on_duty", sess.OnDuty))
	return sess, nil
}

// Status returns the effective session of p. OnDuty is false once the heartbeat expired.
func (s *Service) Status(ctx context.Context, p domain.PartnerID) (domain.DutySession, error) {
	if !p.Valid() {
		return domain.DutySession{}, fmt.Errorf("%w: empty partner id", apperr.ErrInvalid)
	}
	sess, ok, err := s.store.Get(ctx, p)
	if err != nil {
		return domain.DutySession{}, fmt.Errorf("load duty session: %w", err)
	}
	if !ok {
		return domain.DutySession{Partner: p}, nil
	}
	sess.OnDuty = sess.Active(s.clock.Now(), s.ttl)
	return sess, nil
}

// IsOnDuty reports whether p may receive offers.
func (s *Service) IsOnDuty(ctx context.Context, p domain.PartnerID) (bool, error) {
	sess, err := s.Status(ctx, p)
	if err != nil {
		return false, err
	}
	return sess.OnDuty, nil
}

// OnDuty lists every partner currently on duty, ordered by id.
func (s *Service) OnDuty(ctx context.Context) ([]domain.PartnerID, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list duty sessions: %w", err)
	}
	now := s.clock.Now()
	out := make([]domain.PartnerID, 0, len(all))
	for _, sess := range all {
		if sess.Active(now, s.ttl) {
			out = append(out, sess.Partner)
		}
	}
	return out, nil
}
