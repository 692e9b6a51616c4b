package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// Decision labels used in logs and metrics.
const (
	decisionAccept  = "accept"
	decisionReject  = "reject"
	decisionTimeout = "timeout"
	decisionDeliver = "deliver"
	decisionCancel  = "cancel"
)

// Coordinator is the single arbiter of accept and reject attempts.
type Coordinator struct {
	machine *Machine
	orders  OrderRepository
	duty    DutyChecker
	notify  Notifier
	offers  *offerBook
	locks   *keyedMutex
	policy  Policy

	clock            clockwork.Clock
	logger           logx.Logger
	decisions        *prometheus.CounterVec
	operationTimeout time.Duration
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the wall clock.
func WithClock(c clockwork.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l logx.Logger) Option {
	return func(co *Coordinator) { co.logger = l }
}

// WithDecisionsCounter counts decisions by kind and outcome.
func WithDecisionsCounter(c *prometheus.CounterVec) Option {
	return func(co *Coordinator) { co.decisions = c }
}

// WithOperationTimeout bounds each storage round trip.
func WithOperationTimeout(d time.Duration) Option {
	return func(co *Coordinator) { co.operationTimeout = d }
}

// NewCoordinator wires a Coordinator.
func NewCoordinator(orders OrderRepository, duty DutyChecker, notify Notifier, policy Policy, opts ...Option) *Coordinator {
	c := &Coordinator{
		orders:           orders,
		duty:             duty,
		notify:           notify,
		offers:           newOfferBook(),
		locks:            newKeyedMutex(),
		policy:           policy,
		clock:            clockwork.NewRealClock(),
		logger:           logx.Nop(),
		operationTimeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.machine = NewMachine(orders, c.clock)
	return c
}

// Machine exposes the guarded log append.
func (c *Coordinator) Machine() *Machine { return c.machine }

// NewOrder describes an order handed over by the ordering entity.
type NewOrder struct {
	ID        string
	Requester string
	CreatedAt time.Time
}

// Publish stores a PENDING order and offers it to every eligible partner.
// Publishing an id twice returns the stored order with created=false.
func (c *Coordinator) Publish(ctx context.Context, in NewOrder) (domain.Order, bool, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return domain.Order{}, false, fmt.Errorf("%w: empty order id", apperr.ErrInvalid)
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = c.clock.Now()
	}
	o := domain.NewOrder(id, strings.TrimSpace(in.Requester), createdAt.UTC())

	unlock := c.locks.Lock(id)
	defer unlock()

	opCtx, cancel := c.withTimeout(ctx)
	err := c.orders.Create(opCtx, o)
	cancel()
	if errors.Is(err, apperr.ErrConflict) {
		existing, err := c.get(ctx, id)
		return existing, false, err
	}
	if err != nil {
		return domain.Order{}, false, err
	}

	c.logger.Info("order published",
		logx.Event("order_published"),
		logx.OrderID(id),
		logx.String("requester", o.Requester),
	)
	c.offer(ctx, o, domain.EventNewOrder)
	return o, true, nil
}

// TryAccept lets p claim a PENDING order. Exactly one partner wins; others get Success=false.
// A repeated accept by the winner returns the original success marked Duplicate.
func (c *Coordinator) TryAccept(ctx context.Context, orderID string, p domain.PartnerID) (domain.DecisionResult, error) {
	orderID, err := validateAttempt(orderID, p)
	if err != nil {
		return domain.DecisionResult{}, err
	}

	unlock := c.locks.Lock(orderID)
	defer unlock()

	opCtx, cancel := c.withTimeout(ctx)
	o, appended, err := c.machine.Decide(opCtx, orderID, func(o domain.Order) (*domain.Decision, error) {
		if o.Status() != domain.StatusPending {
			return nil, nil
		}
		if o.HasRejected(p) {
			return nil, fmt.Errorf("%w: %s already declined order %s", apperr.ErrForbidden, p, o.ID)
		}
		on, err := c.duty.IsOnDuty(opCtx, p)
		if err != nil {
			return nil, fmt.Errorf("duty of %s: %w", p, err)
		}
		if !on {
			return nil, fmt.Errorf("%w: %s is not on duty", apperr.ErrForbidden, p)
		}
		return &domain.Decision{Actor: p, Status: domain.StatusConfirmed, Kind: domain.KindTransition}, nil
	})
	cancel()
	if err != nil {
		c.count(decisionAccept, "error")
		return domain.DecisionResult{}, err
	}

	res := domain.DecisionResult{AssignedTo: o.AssignedTo(), Order: o}
	switch {
	case appended:
		res.Success = true
		c.count(decisionAccept, "won")
		c.logger.Info("order accepted",
			logx.Event("order_accepted"),
			logx.OrderID(orderID),
			logx.Partner(p),
		)
		c.announceAssignment(ctx, o, p)
	case o.AssignedTo() == p:
		res.Success, res.Duplicate = true, true
		c.offers.Remove(orderID, p)
		c.count(decisionAccept, "duplicate")
	default:
		c.offers.Remove(orderID, p)
		c.count(decisionAccept, "lost")
		c.logger.Info("accept lost race",
			logx.Event("accept_lost"),
			logx.OrderID(orderID),
			logx.Partner(p),
			logx.String("assigned_to", string(o.AssignedTo())),
			logx.String("status", string(o.Status())),
		)
	}
	return res, nil
}

// TryReject records that p declines the order. The order stays PENDING unless the
// exhausted-candidates policy cancels it.
func (c *Coordinator) TryReject(ctx context.Context, orderID string, p domain.PartnerID) (domain.DecisionResult, error) {
	return c.decline(ctx, orderID, p, domain.KindReject)
}

// AutoReject records a timeout on behalf of p. It is idempotent with TryReject.
func (c *Coordinator) AutoReject(ctx context.Context, orderID string, p domain.PartnerID) (domain.DecisionResult, error) {
	return c.decline(ctx, orderID, p, domain.KindTimeout)
}

func (c *Coordinator) decline(ctx context.Context, orderID string, p domain.PartnerID, kind domain.DecisionKind) (domain.DecisionResult, error) {
	label, event := decisionReject, "order_rejected"
	if kind == domain.KindTimeout {
		label, event = decisionTimeout, "offer_timed_out"
	}

	orderID, err := validateAttempt(orderID, p)
	if err != nil {
		return domain.DecisionResult{}, err
	}

	unlock := c.locks.Lock(orderID)
	defer unlock()

	opCtx, cancel := c.withTimeout(ctx)
	o, appended, err := c.machine.Decide(opCtx, orderID, func(o domain.Order) (*domain.Decision, error) {
		if o.HasRejected(p) || o.Status() != domain.StatusPending {
			return nil, nil
		}
		return &domain.Decision{Actor: p, Status: domain.StatusCancelled, Kind: kind}, nil
	})
	cancel()
	if err != nil {
		c.count(label, "error")
		return domain.DecisionResult{}, err
	}
	c.offers.Remove(orderID, p)

	res := domain.DecisionResult{AssignedTo: o.AssignedTo(), Order: o}
	switch {
	case appended:
		res.Success = true
		c.count(label, "recorded")
		c.logger.Info("order declined",
			logx.Event(event),
			logx.OrderID(orderID),
			logx.Partner(p),
		)
		c.send(ctx, p, domain.OrderEvent(domain.EventOrderStatusUpdated, o, c.clock.Now()))
		res.Order = c.afterDecline(ctx, o)
	case o.HasRejected(p):
		res.Success, res.Duplicate = true, true
		c.count(label, "duplicate")
	default:
		c.count(label, "lost")
	}
	return res, nil
}

// Deliver completes a CONFIRMED order. Only the assignee may do so.
func (c *Coordinator) Deliver(ctx context.Context, orderID string, p domain.PartnerID) (domain.DecisionResult, error) {
	return c.ownerTransition(ctx, orderID, p, domain.StatusDelivered, decisionDeliver)
}

// OwnerCancel lets the assignee abandon a CONFIRMED order; the order becomes terminal.
func (c *Coordinator) OwnerCancel(ctx context.Context, orderID string, p domain.PartnerID) (domain.DecisionResult, error) {
	return c.ownerTransition(ctx, orderID, p, domain.StatusCancelled, decisionCancel)
}

func (c *Coordinator) ownerTransition(ctx context.Context, orderID string, p domain.PartnerID, to domain.Status, label string) (domain.DecisionResult, error) {
	orderID, err := validateAttempt(orderID, p)
	if err != nil {
		return domain.DecisionResult{}, err
	}

	unlock := c.locks.Lock(orderID)
	defer unlock()

	opCtx, cancel := c.withTimeout(ctx)
	o, appended, err := c.machine.Decide(opCtx, orderID, func(o domain.Order) (*domain.Decision, error) {
		cur := o.Status()
		switch {
		case cur == domain.StatusPending:
			return nil, fmt.Errorf("%w: order %s is not confirmed", apperr.ErrInvalid, o.ID)
		case o.AssignedTo() != p:
			return nil, fmt.Errorf("%w: %s is not assigned to order %s", apperr.ErrForbidden, p, o.ID)
		case cur == to:
			return nil, nil
		case cur.Terminal():
			return nil, fmt.Errorf("%w: order %s is %s", apperr.ErrConflict, o.ID, cur)
		}
		return &domain.Decision{Actor: p, Status: to, Kind: domain.KindTransition}, nil
	})
	cancel()
	if err != nil {
		c.count(label, "error")
		return domain.DecisionResult{}, err
	}

	res := domain.DecisionResult{Success: true, Duplicate: !appended, AssignedTo: o.AssignedTo(), Order: o}
	if !appended {
		c.count(label, "duplicate")
		return res, nil
	}
	c.count(label, "recorded")
	c.logger.Info("order status changed by assignee",
		logx.Event("order_"+strings.ToLower(string(to))),
		logx.OrderID(orderID),
		logx.Partner(p),
	)
	c.send(ctx, p, domain.OrderEvent(domain.EventOrderStatusUpdated, o, c.clock.Now()))
	return res, nil
}

// Cancel is the upstream cancellation by the ordering entity. It closes outstanding
// offers and tells the assignee. Cancelling twice is a duplicate; cancelling a
// delivered order is a conflict.
func (c *Coordinator) Cancel(ctx context.Context, orderID string, actor domain.PartnerID) (domain.DecisionResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.DecisionResult{}, fmt.Errorf("%w: empty order id", apperr.ErrInvalid)
	}
	if !actor.Valid() {
		actor = domain.SystemActor
	}

	unlock := c.locks.Lock(orderID)
	defer unlock()

	opCtx, cancel := c.withTimeout(ctx)
	o, appended, err := c.machine.Decide(opCtx, orderID, func(o domain.Order) (*domain.Decision, error) {
		switch o.Status() {
		case domain.StatusCancelled:
			return nil, nil
		case domain.StatusDelivered:
			return nil, fmt.Errorf("%w: order %s already delivered", apperr.ErrConflict, o.ID)
		}
		return &domain.Decision{Actor: actor, Status: domain.StatusCancelled, Kind: domain.KindTransition}, nil
	})
	cancel()
	if err != nil {
		c.count(decisionCancel, "error")
		return domain.DecisionResult{}, err
	}

	res := domain.DecisionResult{Success: true, Duplicate: !appended, AssignedTo: o.AssignedTo(), Order: o}
	if !appended {
		c.count(decisionCancel, "duplicate")
		return res, nil
	}
	c.count(decisionCancel, "recorded")
	c.logger.Info("order cancelled",
		logx.Event("order_cancelled"),
		logx.OrderID(orderID),
		logx.String("actor", string(actor)),
	)
	c.announceCancel(ctx, o)
	return res, nil
}

// UpdateStatus is the externally reachable transition: CONFIRMED accepts,
// CANCELLED declines (or abandons, for the assignee), DELIVERED completes.
func (c *Coordinator) UpdateStatus(ctx context.Context, orderID string, status domain.Status, actor domain.PartnerID) (domain.DecisionResult, error) {
	switch status {
	case domain.StatusConfirmed:
		return c.TryAccept(ctx, orderID, actor)
	case domain.StatusDelivered:
		return c.Deliver(ctx, orderID, actor)
	case domain.StatusCancelled:
		o, err := c.get(ctx, strings.TrimSpace(orderID))
		if err != nil {
			return domain.DecisionResult{}, err
		}
		if actor.Valid() && o.AssignedTo() == actor {
			return c.OwnerCancel(ctx, orderID, actor)
		}
		return c.TryReject(ctx, orderID, actor)
	default:
		return domain.DecisionResult{}, fmt.Errorf("%w: cannot request status %q", apperr.ErrInvalid, status)
	}
}

// Get returns one order.
func (c *Coordinator) Get(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: empty order id", apperr.ErrInvalid)
	}
	return c.get(ctx, orderID)
}

// ActiveOrders returns orders CONFIRMED and owned by p.
func (c *Coordinator) ActiveOrders(ctx context.Context, p domain.PartnerID) ([]domain.Order, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: empty partner id", apperr.ErrInvalid)
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.orders.List(ctx, domain.OrderFilter{
		Statuses:   []domain.Status{domain.StatusConfirmed},
		AssignedTo: p,
	})
}

// PendingLiveOrders returns PENDING orders. With a partner, only those it may still
// accept: the partner must be on duty and must not have declined them.
func (c *Coordinator) PendingLiveOrders(ctx context.Context, p domain.PartnerID) ([]domain.Order, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	pending, err := c.orders.List(ctx, domain.OrderFilter{Statuses: []domain.Status{domain.StatusPending}})
	if err != nil {
		return nil, err
	}
	if p == "" {
		return pending, nil
	}

	on, err := c.duty.IsOnDuty(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(pending))
	if !on {
		return out, nil
	}
	for _, o := range pending {
		if !o.HasRejected(p) {
			out = append(out, o)
		}
	}
	return out, nil
}

// OfferPending re-offers still pending orders to p, typically right after it came on duty.
// It returns how many offers were sent.
func (c *Coordinator) OfferPending(ctx context.Context, p domain.PartnerID) (int, error) {
	if !p.Valid() {
		return 0, fmt.Errorf("%w: empty partner id", apperr.ErrInvalid)
	}
	active, err := c.ActiveOrders(ctx, p)
	if err != nil {
		return 0, err
	}
	if len(active) > 0 {
		return 0, nil
	}
	live, err := c.PendingLiveOrders(ctx, p)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, o := range live {
		if c.offerIfPending(ctx, o.ID, p) {
			sent++
		}
	}
	return sent, nil
}

// offerIfPending offers orderID to p under the order lock, from a fresh read.
// An accept that landed after the listing has already dropped the order's offers.
func (c *Coordinator) offerIfPending(ctx context.Context, orderID string, p domain.PartnerID) bool {
	unlock := c.locks.Lock(orderID)
	defer unlock()

	o, err := c.get(ctx, orderID)
	if err != nil {
		c.logger.Warn("cannot re-read order for offer", logx.OrderID(orderID), logx.Partner(p), logx.Err(err))
		return false
	}
	if o.Status() != domain.StatusPending || o.HasRejected(p) {
		return false
	}
	return c.offerTo(ctx, o, p, domain.EventOrderAvailableAgain)
}

// ExpireOffers auto-rejects offers whose window closed more than the grace period ago.
func (c *Coordinator) ExpireOffers(ctx context.Context) (int, error) {
	cutoff := c.clock.Now().Add(-c.policy.SweepGrace)
	expired := 0
	var errs []error
	for _, off := range c.offers.Due(cutoff) {
		res, err := c.AutoReject(ctx, off.OrderID, off.Partner)
		if errors.Is(err, apperr.ErrNotFound) {
			c.offers.Drop(off.OrderID)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("expire %s/%s: %w", off.OrderID, off.Partner, err))
			continue
		}
		if res.Success && !res.Duplicate {
			expired++
			c.logger.Info("offer expired",
				logx.Event("offer_expired"),
				logx.OrderID(off.OrderID),
				logx.Partner(off.Partner),
				logx.Time("deadline", off.Deadline),
			)
		}
	}
	return expired, errors.Join(errs...)
}

// OutstandingOffers reports how many offers this instance is tracking.
func (c *Coordinator) OutstandingOffers() int { return c.offers.Len() }

func (c *Coordinator) afterDecline(ctx context.Context, o domain.Order) domain.Order {
	candidates, err := c.eligible(ctx, o)
	if err != nil {
		c.logger.Warn("eligibility unknown, keeping order pending",
			logx.OrderID(o.ID),
			logx.Err(err),
		)
		return o
	}
	if len(candidates) == 0 {
		if c.policy.ExhaustedAction != CancelOrder {
			c.logger.Info("no candidates left, holding order",
				logx.Event("order_held"),
				logx.OrderID(o.ID),
			)
			return o
		}
		opCtx, cancel := c.withTimeout(ctx)
		cancelled, err := c.machine.AppendDecision(opCtx, o.ID, domain.Decision{
			Actor:  domain.SystemActor,
			Status: domain.StatusCancelled,
			Kind:   domain.KindTransition,
		}, domain.StatusPending)
		cancel()
		if err != nil {
			c.logger.Error("cancel exhausted order failed", logx.OrderID(o.ID), logx.Err(err))
			return o
		}
		c.count(decisionCancel, "exhausted")
		c.logger.Info("no candidates left, order cancelled",
			logx.Event("order_exhausted"),
			logx.OrderID(o.ID),
		)
		c.announceCancel(ctx, cancelled)
		return cancelled
	}

	if c.policy.ReofferOnReject {
		for _, p := range candidates {
			c.offerTo(ctx, o, p, domain.EventOrderAvailableAgain)
		}
	}
	return o
}

// eligible lists partners on duty, without an active order, who have not declined o.
func (c *Coordinator) eligible(ctx context.Context, o domain.Order) ([]domain.PartnerID, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	onDuty, err := c.duty.OnDuty(ctx)
	if err != nil {
		return nil, fmt.Errorf("on duty: %w", err)
	}
	if len(onDuty) == 0 {
		return nil, nil
	}
	busy, err := c.orders.List(ctx, domain.OrderFilter{Statuses: []domain.Status{domain.StatusConfirmed}})
	if err != nil {
		return nil, fmt.Errorf("busy partners: %w", err)
	}
	busySet := make(map[domain.PartnerID]struct{}, len(busy))
	for _, b := range busy {
		busySet[b.AssignedTo()] = struct{}{}
	}

	out := make([]domain.PartnerID, 0, len(onDuty))
	for _, p := range onDuty {
		if _, ok := busySet[p]; ok || o.HasRejected(p) || p == o.AssignedTo() {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Coordinator) offer(ctx context.Context, o domain.Order, t domain.EventType) {
	candidates, err := c.eligible(ctx, o)
	if err != nil {
		c.logger.Warn("cannot offer order", logx.OrderID(o.ID), logx.Err(err))
		return
	}
	for _, p := range candidates {
		c.offerTo(ctx, o, p, t)
	}
}

// offerTo registers a window for p and sends the event unless p already holds one.
func (c *Coordinator) offerTo(ctx context.Context, o domain.Order, p domain.PartnerID, t domain.EventType) bool {
	now := c.clock.Now()
	if !c.offers.Add(Offer{OrderID: o.ID, Partner: p, Deadline: now.Add(c.policy.OfferWindow)}) {
		return false
	}
	c.send(ctx, p, domain.OrderEvent(t, o, now))
	return true
}

func (c *Coordinator) announceAssignment(ctx context.Context, o domain.Order, winner domain.PartnerID) {
	now := c.clock.Now()
	c.send(ctx, winner, domain.OrderEvent(domain.EventOrderStatusUpdated, o, now))

	losers := map[domain.PartnerID]struct{}{}
	for _, p := range c.offers.Drop(o.ID) {
		losers[p] = struct{}{}
	}
	onDuty, err := c.duty.OnDuty(ctx)
	if err != nil {
		c.logger.Warn("on-duty lookup failed, notifying offer holders only", logx.OrderID(o.ID), logx.Err(err))
	}
	for _, p := range onDuty {
		losers[p] = struct{}{}
	}
	delete(losers, winner)

	ev := domain.Event{Type: domain.EventOrderAssigned, OrderID: o.ID, AssignedTo: winner, At: now}
	for p := range losers {
		c.send(ctx, p, ev)
	}
}

func (c *Coordinator) announceCancel(ctx context.Context, o domain.Order) {
	now := c.clock.Now()
	ev := domain.Event{Type: domain.EventOrderCancelled, OrderID: o.ID, At: now}

	targets := map[domain.PartnerID]struct{}{}
	for _, p := range c.offers.Drop(o.ID) {
		targets[p] = struct{}{}
	}
	if a := o.AssignedTo(); a != "" {
		targets[a] = struct{}{}
	}
	for p := range targets {
		c.send(ctx, p, ev)
	}
}

func (c *Coordinator) send(ctx context.Context, to domain.PartnerID, ev domain.Event) {
	if c.notify == nil {
		return
	}
	if err := c.notify.Notify(ctx, to, ev); err != nil {
		c.logger.Warn("notify failed",
			logx.Partner(to),
			logx.OrderID(ev.OrderID),
			logx.String("type", string(ev.Type)),
			logx.Err(err),
		)
	}
}

func (c *Coordinator) get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.orders.Get(ctx, id)
}

func (c *Coordinator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.operationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.operationTimeout)
}

func (c *Coordinator) count(decision, outcome string) {
	if c.decisions != nil {
		c.decisions.WithLabelValues(decision, outcome).Inc()
	}
}

func validateAttempt(orderID string, p domain.PartnerID) (string, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", fmt.Errorf("%w: empty order id", apperr.ErrInvalid)
	}
	if !p.Valid() {
		return "", fmt.Errorf("%w: empty partner id", apperr.ErrInvalid)
	}
	return orderID, nil
}
