package partner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// DefaultOfferWindow is how long a partner has to decide on an offer.
const DefaultOfferWindow = 60 * time.Second

var (
	// ErrNoOffer is returned when acting on an order that is not the held offer.
	ErrNoOffer = errors.New("no such offer")
	// ErrInFlight is returned while a previous decision on the same order is outstanding.
	ErrInFlight = errors.New("decision already in flight")
)

// Offer is the locally held decision window for one order.
type Offer struct {
	Order    domain.Order
	Deadline time.Time
}

// NoticeKind classifies Agent notices.
type NoticeKind string

// Notice kinds.
const (
	NoticeOfferShown     NoticeKind = "offer_shown"
	NoticeOfferClosed    NoticeKind = "offer_closed"
	NoticeCurrentChanged NoticeKind = "current_changed"
	NoticeMessage        NoticeKind = "message"
)

// CloseReason says why an offer went away.
type CloseReason string

// Offer close reasons.
const (
	ReasonAccepted  CloseReason = "accepted"
	ReasonLost      CloseReason = "lost"
	ReasonRejected  CloseReason = "rejected"
	ReasonTimeout   CloseReason = "timeout"
	ReasonCancelled CloseReason = "cancelled"
	ReasonStale     CloseReason = "stale"
	ReasonRefused   CloseReason = "refused"
)

// Notice reports a change of the agent's visible state.
type Notice struct {
	Kind    NoticeKind
	OrderID string
	Reason  CloseReason
	Offer   *Offer
	Current *domain.Order
	Message string
}

// Decision is what an automated agent does with a fresh offer.
type Decision string

// Agent decisions.
const (
	DecideAccept Decision = "accept"
	DecideReject Decision = "reject"
	DecideIgnore Decision = "ignore"
)

// ParseDecision accepts accept|reject|ignore.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecideAccept, DecideReject, DecideIgnore:
		return d, nil
	default:
		return "", fmt.Errorf("%w: decision %q", apperr.ErrInvalid, s)
	}
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithAgentClock sets the clock used for deadlines.
func WithAgentClock(c clockwork.Clock) AgentOption {
	return func(a *Agent) { a.clock = c }
}

// WithAgentLogger sets the logger.
func WithAgentLogger(l logx.Logger) AgentOption {
	return func(a *Agent) { a.logger = l }
}

// WithOfferWindow sets the decision window.
func WithOfferWindow(d time.Duration) AgentOption {
	return func(a *Agent) { a.window = d }
}

// WithDecision makes the agent act on every offer it shows.
func WithDecision(d Decision) AgentOption {
	return func(a *Agent) { a.decision = d }
}

// WithTimer replaces the offer timer.
func WithTimer(t *OfferTimer) AgentOption {
	return func(a *Agent) { a.timer = t }
}

// Agent holds one partner's offer and current order. Server state is the
// source of truth: events open or close offers, reconciliation corrects them.
type Agent struct {
	partner  domain.PartnerID
	server   Server
	timer    *OfferTimer
	clock    clockwork.Clock
	logger   logx.Logger
	window   time.Duration
	decision Decision

	baseMu  sync.Mutex
	baseCtx context.Context

	mu       sync.Mutex
	offer    *Offer
	current  *domain.Order
	inFlight map[string]string
	subs     map[uint64]func(Notice)
	nextSub  uint64

	reconciles singleflight.Group
}

// NewAgent creates an idle agent acting as partner.
func NewAgent(partner domain.PartnerID, server Server, opts ...AgentOption) *Agent {
	a := &Agent{
		partner:  partner,
		server:   server,
		clock:    clockwork.NewRealClock(),
		logger:   logx.Nop(),
		window:   DefaultOfferWindow,
		decision: DecideIgnore,
		baseCtx:  context.Background(),
		inFlight: make(map[string]string),
		subs:     make(map[uint64]func(Notice)),
	}
	for _, o := range opts {
		o(a)
	}
	if a.timer == nil {
		a.timer = NewOfferTimer(a.clock, DefaultTick)
	}
	a.logger = a.logger.With(logx.Partner(partner))
	return a
}

// Attach wires the agent to a session: events feed HandleEvent and every join
// triggers Reconcile. Background work uses ctx.
func (a *Agent) Attach(ctx context.Context, s *Session) (detach func()) {
	a.baseMu.Lock()
	a.baseCtx = ctx
	a.baseMu.Unlock()

	offEvents := s.Subscribe(func(ev domain.Event) { a.HandleEvent(ctx, ev) })
	offJoins := s.OnJoin(func(joinCtx context.Context) {
		if err := a.Reconcile(joinCtx); err != nil {
			a.logger.Warn("reconcile after join failed", logx.Err(err))
		}
	})
	return func() {
		offEvents()
		offJoins()
		a.timer.Stop()
	}
}

// Subscribe registers fn for agent notices. Notices are delivered synchronously.
func (a *Agent) Subscribe(fn func(Notice)) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subs, id)
	}
}

// Offer returns the held offer.
func (a *Agent) Offer() (Offer, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.offer == nil {
		return Offer{}, false
	}
	return *a.offer, true
}

// Current returns the order the partner is working on.
func (a *Agent) Current() (domain.Order, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return domain.Order{}, false
	}
	return *a.current, true
}

// Pending reports the request id of an outstanding decision on orderID.
func (a *Agent) Pending(orderID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.inFlight[orderID]
	return id, ok
}

// HandleEvent applies one channel event to local state.
func (a *Agent) HandleEvent(ctx context.Context, ev domain.Event) {
	id := ev.OrderID
	if id == "" && ev.Order != nil {
		id = ev.Order.ID
	}

	var notices []Notice
	var shown *Offer

	a.mu.Lock()
	switch {
	case ev.Type.Offers():
		shown, notices = a.showLocked(ev.Order)
	case ev.Type == domain.EventOrderAssigned:
		if ev.AssignedTo == a.partner {
			if ev.Order != nil {
				notices = a.setCurrentLocked(ev.Order)
			}
			notices = append(notices, a.closeOfferLocked(id, ReasonAccepted)...)
		} else {
			notices = a.closeOfferLocked(id, ReasonLost)
		}
	case ev.Type == domain.EventOrderStatusUpdated:
		notices = a.statusUpdatedLocked(id, ev.Order)
	case ev.Type == domain.EventOrderCancelled:
		notices = a.closeOfferLocked(id, ReasonCancelled)
		if a.current != nil && a.current.ID == id {
			notices = append(notices, a.clearCurrentLocked()...)
			notices = append(notices, Notice{Kind: NoticeMessage, OrderID: id, Message: "order was cancelled"})
		}
	}
	a.mu.Unlock()

	a.emit(notices)
	if shown != nil {
		a.autoDecide(ctx, shown.Order.ID)
	}
}

func (a *Agent) statusUpdatedLocked(id string, o *domain.Order) []Notice {
	if o == nil {
		return nil
	}
	switch st := o.Status(); {
	case st == domain.StatusConfirmed && o.AssignedTo() == a.partner:
		notices := a.setCurrentLocked(o)
		return append(notices, a.closeOfferLocked(id, ReasonAccepted)...)
	case st == domain.StatusConfirmed:
		return a.closeOfferLocked(id, ReasonLost)
	case st.Terminal():
		notices := a.closeOfferLocked(id, ReasonCancelled)
		if a.current != nil && a.current.ID == id {
			notices = append(notices, a.clearCurrentLocked()...)
		}
		return notices
	}
	return nil
}

// showLocked surfaces o as the offer when nothing else is on screen.
func (a *Agent) showLocked(o *domain.Order) (*Offer, []Notice) {
	if o == nil || a.offer != nil || a.current != nil {
		return nil, nil
	}
	if o.Status() != domain.StatusPending || o.HasRejected(a.partner) {
		return nil, nil
	}

	off := &Offer{Order: o.Clone(), Deadline: a.clock.Now().Add(a.window)}
	a.offer = off
	a.timer.Start(o.ID, off.Deadline, a.expire)
	a.logger.Info("offer shown", logx.OrderID(o.ID), logx.Time("deadline", off.Deadline))

	cp := *off
	return off, []Notice{{Kind: NoticeOfferShown, OrderID: o.ID, Offer: &cp}}
}

func (a *Agent) closeOfferLocked(id string, reason CloseReason) []Notice {
	if a.offer == nil || a.offer.Order.ID != id {
		return nil
	}
	a.offer = nil
	a.timer.Cancel(id)
	a.logger.Info("offer closed", logx.OrderID(id), logx.String("reason", string(reason)))
	return []Notice{{Kind: NoticeOfferClosed, OrderID: id, Reason: reason}}
}

func (a *Agent) setCurrentLocked(o *domain.Order) []Notice {
	if a.current != nil && a.current.ID == o.ID && a.current.Status() == o.Status() {
		return nil
	}
	cp := o.Clone()
	a.current = &cp
	cur := cp.Clone()
	return []Notice{{Kind: NoticeCurrentChanged, OrderID: o.ID, Current: &cur}}
}

func (a *Agent) clearCurrentLocked() []Notice {
	if a.current == nil {
		return nil
	}
	id := a.current.ID
	a.current = nil
	return []Notice{{Kind: NoticeCurrentChanged, OrderID: id}}
}

// Accept tries to claim the held offer.
func (a *Agent) Accept(ctx context.Context, orderID string) (domain.DecisionResult, error) {
	return a.decide(ctx, orderID, domain.StatusConfirmed)
}

// Reject declines the held offer.
func (a *Agent) Reject(ctx context.Context, orderID string) (domain.DecisionResult, error) {
	return a.decide(ctx, orderID, domain.StatusCancelled)
}

// Deliver marks the current order delivered.
func (a *Agent) Deliver(ctx context.Context, orderID string) (domain.DecisionResult, error) {
	a.mu.Lock()
	if a.current == nil || a.current.ID != orderID {
		a.mu.Unlock()
		return domain.DecisionResult{}, fmt.Errorf("%w: %s is not the current order", ErrNoOffer, orderID)
	}
	reqID, ok := a.beginLocked(orderID)
	a.mu.Unlock()
	if !ok {
		return domain.DecisionResult{}, ErrInFlight
	}

	res, err := a.server.UpdateStatus(ctx, orderID, domain.StatusDelivered, reqID)

	var notices []Notice
	a.mu.Lock()
	delete(a.inFlight, orderID)
	switch {
	case err == nil && res.Success && a.current != nil && a.current.ID == orderID:
		notices = a.clearCurrentLocked()
	case errors.Is(err, apperr.ErrNotFound):
		if a.current != nil && a.current.ID == orderID {
			notices = a.clearCurrentLocked()
		}
	}
	a.mu.Unlock()
	a.emit(notices)
	return res, err
}

func (a *Agent) decide(ctx context.Context, orderID string, to domain.Status) (domain.DecisionResult, error) {
	a.mu.Lock()
	if a.offer == nil || a.offer.Order.ID != orderID {
		a.mu.Unlock()
		return domain.DecisionResult{}, fmt.Errorf("%w: %s", ErrNoOffer, orderID)
	}
	reqID, ok := a.beginLocked(orderID)
	if ok {
		// A decision is on its way: no auto-reject may race it.
		a.timer.Cancel(orderID)
	}
	a.mu.Unlock()
	if !ok {
		return domain.DecisionResult{}, ErrInFlight
	}

	res, err := a.server.UpdateStatus(ctx, orderID, to, reqID)

	a.mu.Lock()
	delete(a.inFlight, orderID)
	notices := a.settleLocked(orderID, to, res, err)
	resumed := a.resumeTimerLocked(orderID)
	a.mu.Unlock()

	a.emit(notices)
	if resumed {
		a.timer.Check()
	}
	return res, err
}

// resumeTimerLocked restarts the countdown of an offer that survived a failed
// decision. The deadline is the original one.
func (a *Agent) resumeTimerLocked(orderID string) bool {
	if a.offer == nil || a.offer.Order.ID != orderID {
		return false
	}
	a.timer.Start(orderID, a.offer.Deadline, a.expire)
	return true
}

// beginLocked marks orderID in flight under a fresh request id.
func (a *Agent) beginLocked(orderID string) (string, bool) {
	if _, busy := a.inFlight[orderID]; busy {
		return "", false
	}
	reqID := uuid.NewString()
	a.inFlight[orderID] = reqID
	return reqID, true
}

// settleLocked reconciles local state with a decision outcome.
func (a *Agent) settleLocked(orderID string, to domain.Status, res domain.DecisionResult, err error) []Notice {
	switch {
	case err == nil && to == domain.StatusConfirmed && res.Success:
		notices := a.setCurrentLocked(&res.Order)
		return append(notices, a.closeOfferLocked(orderID, ReasonAccepted)...)
	case err == nil && to == domain.StatusConfirmed:
		notices := a.closeOfferLocked(orderID, ReasonLost)
		return append(notices, Notice{Kind: NoticeMessage, OrderID: orderID, Message: "order no longer available"})
	case err == nil:
		return a.closeOfferLocked(orderID, ReasonRejected)
	case errors.Is(err, apperr.ErrNotFound):
		return a.closeOfferLocked(orderID, ReasonStale)
	case errors.Is(err, apperr.ErrConflict):
		notices := a.closeOfferLocked(orderID, ReasonLost)
		return append(notices, Notice{Kind: NoticeMessage, OrderID: orderID, Message: "order no longer available"})
	case errors.Is(err, apperr.ErrInvalid), errors.Is(err, apperr.ErrForbidden):
		notices := a.closeOfferLocked(orderID, ReasonRefused)
		return append(notices, Notice{Kind: NoticeMessage, OrderID: orderID, Message: err.Error()})
	default:
		// Transport failure: the offer stays and its countdown resumes.
		a.logger.Warn("decision not delivered", logx.OrderID(orderID), logx.Err(err))
		return []Notice{{Kind: NoticeMessage, OrderID: orderID, Message: "connection problem, try again"}}
	}
}

// expire auto-rejects the held offer on behalf of the partner.
func (a *Agent) expire(orderID string) {
	a.mu.Lock()
	if a.offer == nil || a.offer.Order.ID != orderID {
		a.mu.Unlock()
		return
	}
	reqID, ok := a.beginLocked(orderID)
	if !ok {
		// The partner's own decision settles the offer.
		a.mu.Unlock()
		return
	}
	a.offer = nil
	a.mu.Unlock()

	a.logger.Info("offer timed out", logx.Event("offer_timeout"), logx.OrderID(orderID))
	a.emit([]Notice{{Kind: NoticeOfferClosed, OrderID: orderID, Reason: ReasonTimeout}})

	a.baseMu.Lock()
	ctx := a.baseCtx
	a.baseMu.Unlock()

	_, err := a.server.UpdateStatus(ctx, orderID, domain.StatusCancelled, reqID)
	a.mu.Lock()
	if a.inFlight[orderID] == reqID {
		delete(a.inFlight, orderID)
	}
	a.mu.Unlock()
	if err != nil {
		a.logger.Warn("auto reject failed", logx.OrderID(orderID), logx.Err(err))
	}
}

func (a *Agent) autoDecide(ctx context.Context, orderID string) {
	var act func(context.Context, string) (domain.DecisionResult, error)
	switch a.decision {
	case DecideAccept:
		act = a.Accept
	case DecideReject:
		act = a.Reject
	default:
		return
	}
	go func() {
		res, err := act(ctx, orderID)
		if err != nil {
			a.logger.Warn("auto decision failed", logx.OrderID(orderID), logx.String("decision", string(a.decision)), logx.Err(err))
			return
		}
		a.logger.Info("auto decision",
			logx.OrderID(orderID),
			logx.String("decision", string(a.decision)),
			logx.Bool("success", res.Success),
		)
	}()
}

func (a *Agent) emit(notices []Notice) {
	if len(notices) == 0 {
		return
	}
	a.mu.Lock()
	subs := make([]func(Notice), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	for _, n := range notices {
		for _, fn := range subs {
			fn(n)
		}
	}
}
