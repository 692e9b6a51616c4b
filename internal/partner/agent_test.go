package partner_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/partner"
)

const self = domain.PartnerID("a@example.com")

func pending(id string) domain.Order {
	return domain.NewOrder(id, "req@example.com", t0)
}

func confirmedBy(id string, p domain.PartnerID) domain.Order {
	o := pending(id)
	o.Apply(domain.Decision{Actor: p, Status: domain.StatusConfirmed, Kind: domain.KindTransition, At: t0.Add(time.Second)})
	return o
}

func offerEvent(t domain.EventType, o domain.Order) domain.Event {
	return domain.OrderEvent(t, o, t0)
}

type notices struct {
	mu  sync.Mutex
	all []partner.Notice
}

func (n *notices) add(x partner.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.all = append(n.all, x)
}

func (n *notices) closed(orderID string) []partner.CloseReason {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []partner.CloseReason
	for _, x := range n.all {
		if x.Kind == partner.NoticeOfferClosed && x.OrderID == orderID {
			out = append(out, x.Reason)
		}
	}
	return out
}

func (n *notices) count(kind partner.NoticeKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, x := range n.all {
		if x.Kind == kind {
			c++
		}
	}
	return c
}

type fixture struct {
	srv     *MockServer
	clock   *clockwork.FakeClock
	timer   *partner.OfferTimer
	agent   *partner.Agent
	notices *notices
}

func newFixture(t *testing.T, opts ...partner.AgentOption) fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	srv := NewMockServer(ctrl)
	fc := clockwork.NewFakeClockAt(t0)
	timer := partner.NewOfferTimer(fc, time.Hour)

	base := []partner.AgentOption{
		partner.WithAgentClock(fc),
		partner.WithTimer(timer),
		partner.WithAgentLogger(logx.Nop()),
	}
	a := partner.NewAgent(self, srv, append(base, opts...)...)
	n := &notices{}
	a.Subscribe(n.add)
	return fixture{srv: srv, clock: fc, timer: timer, agent: a, notices: n}
}

func TestAgent_AcceptWinSetsCurrentAndClosesOffer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.agent.HandleEvent(ctx, offerEvent(domain.EventNewOrder, pending("o1")))
	off, ok := f.agent.Offer()
	require.True(t, ok)
	require.Equal(t, t0.Add(partner.DefaultOfferWindow), off.Deadline)

	var sentID string
	f.srv.EXPECT().
		UpdateStatus(gomock.Any(), "o1", domain.StatusConfirmed, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ domain.Status, reqID string) (domain.DecisionResult, error) {
			sentID = reqID
			return domain.DecisionResult{Success: true, AssignedTo: self, Order: confirmedBy("o1", self)}, nil
		})

	res, err := f.agent.Accept(ctx, "o1")
	require.NoError(t, err)
	require.True(t, res.Success)
	_, err = uuid.Parse(sentID)
	require.NoError(t, err)

	_, ok = f.agent.Offer()
	require.False(t, ok)
	cur, ok := f.agent.Current()
	require.True(t, ok)
	require.Equal(t, "o1", cur.ID)
	require.Equal(t, []partner.CloseReason{partner.ReasonAccepted}, f.notices.closed("o1"))

	_, running := f.agent.Pending("o1")
	require.False(t, running)
	_, _, timing := f.timer.Remaining()
	require.False(t, timing)
}

func TestAgent_LostRaceClosesOfferWithoutReject(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.agent.HandleEvent(ctx, offerEvent(domain.EventNewOrder, pending("o1")))
	f.srv.EXPECT().
		UpdateStatus(gomock.Any(), "o1", domain.StatusConfirmed, gomock.Any()).
		Return(domain.DecisionResult{Success: false, AssignedTo: "b@example.com", Order: confirmedBy("o1", "b@example.com")}, nil)

	res, err := f.agent.Accept(ctx, "o1")
	require.NoError(t, err)
	require.False(t, res.Success)

	_, ok := f.agent.Offer()
	require.False(t, ok)
	_, ok = f.agent.Current()
	require.False(t, ok)
	require.Equal(t, []partner.CloseReason{partner.ReasonLost}, f.notices.closed("o1"))
	require.Equal(t, 1, f.notices.count(partner.NoticeMessage))

	// The cancelled timer never auto-rejects.
	f.clock.Advance(2 * time.Minute)
	f.timer.Check()
}

func TestAgent_OrderAssignedToOtherClosesOfferSilently(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.agent.HandleEvent(ctx, offerEvent(domain.EventNewOrder, pending("o1")))
	f.agent.HandleEvent(ctx, domain.Event{Type: domain.EventOrderAssigned, OrderID: "o1", AssignedTo: "b@example.com"})

	_, ok := f.agent.Offer()
	require.False(t, ok)
	require.Equal(t, []partner.CloseReason{partner.ReasonLost}, f.notices.closed("o1"))

	f.clock.Advance(2 * time.Minute)
	f.timer.Check()
}

func TestAgent_TimeoutAutoRejectsExactlyOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.agent.HandleEvent(ctx, offerEvent(domain.EventNewOrder, pending("o2")))

	f.clock.Advance(59 * time.Second)
	f.timer.Check()
	_, ok := f.agent.Offer()
	require.True(t, ok)

	f.srv.EXPECT().
		UpdateStatus(gomock.Any(), "o2", domain.StatusCancelled, gomock.Any()).
		Return(domain.DecisionResult{Success: true, Order: pending("o2")}, nil).
		Times(1)

	f.clock.Advance(time.Second)
	f.timer.Check()
	f.timer.Check()

	_, ok = f.agent.Offer()
	require.False(t, ok)
	require.Equal(t, []partner.CloseReason{partner.ReasonTimeout}, f.notices.closed("o2"))
	_, running := f.agent.Pending("o2")
	require.False(t, running)
}

func TestAgent_SuspendedNinetySecondsRejectsOnFirstCheck(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.agent.HandleEvent(ctx, offerEvent(domain.EventNewOrder, pending("o1")))
	f.clock.Advance(90 * time.Second)

	f.srv.EXPECT().
		UpdateStatus(gomock.Any(), "o1", domain.StatusCancelled, gomock.Any()).
		Return(domain.DecisionResult{Success: true}, nil)

	f.timer.Check()
	require.Equal(t, []partner.CloseReason{partner.ReasonTimeout}, f.notices.closed("o1"))
}

func TestAgent_DoubleTapIsBlockedWhileInFlight(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.agent.HandleEvent(ctx, offerEvent(domain.EventNewOrder, pending("o1")))

	release := make(chan struct{})
	f.srv.EXPECT().
		UpdateStatus(gomock.Any(), "o1", domain.StatusConfirmed, gomock.Any()).
		DoAndReturn(func(context.Context, string, domain.Status, string) (domain.DecisionResult, error) {
			<-release
			return domain.DecisionResult{Success: true, AssignedTo: self, Order: confirmedBy("o1", self)}, nil
		}).
		Times(1)

	done := make(chan error, 1)
	go func() {
		_, err := f.agent.Accept(ctx, "o1")
		done <- err
	}()

	require.Eventually(t, func() bool {
		_, ok := f.agent.Pending("o1")
		return ok
	}, time.Second, time.Millisecond)

	_, err := f.agent.Accept(ctx, "o1")
	require.ErrorIs(t, err, partner.ErrInFlight)
	_, err = f.agent.Reject(ctx, "o1")
	require.ErrorIs(t, err, partner.ErrInFlight)

	close(release)
	require.NoError(t, <-done)
	_, ok := f.agent.Current()
	require.True(t, ok)
}

func TestAgent_DeadlinePassingDuringAcceptDoesNotAutoReject(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.agent.HandleEvent(ctx, offerEvent(domain.EventNewOrder, pending("o1")))

	release := make(chan struct{})
	f.srv.EXPECT().
		UpdateStatus(gomock.Any(), "o1", domain.StatusConfirmed, gomock.Any()).
		DoAndReturn(func(context.Context, string, domain.Status, string) (domain.DecisionResult, error) {
			<-release
			return domain.DecisionResult{Success: true, AssignedTo: self, Order: confirmedBy("o1", self)}, nil
		})

	done := make(chan error, 1)
	go func() {
		_, err := f.agent.Accept(ctx, "o1")
		done <- err
	}()
	require.Eventually(t, func() bool {
		_, ok := f.agent.Pending("o1")
		return ok
	}, time.Second, time.Millisecond)

	_, _, timing := f.timer.Remaining()
	require.False(t, timing)

	f.clock.Advance(61 * time.Second)
	f.timer.Check()
	_, held := f.agent.Offer()
	require.True(t, held)

	close(release)
	require.NoError(t, <-done)

	cur, ok := f.agent.Current()
	require.True(t, ok)
	require.Equal(t, "o1", cur.ID)
	require.Equal(t, []partner.CloseReason{partner.ReasonAccepted}, f.notices.closed("o1"))
}

func TestAgent_TransientFailureAfterDeadlineAutoRejects(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.agent.HandleEvent(ctx, offerEvent(domain.EventNewOrder, pending("o1")))

	gomock.InOrder(
		f.srv.EXPECT().
			UpdateStatus(gomock.Any(), "o1", domain.StatusConfirmed, gomock.Any()).
			DoAndReturn(func(context.Context, string, domain.Status, string) (domain.DecisionResult, error) {
				f.clock.Advance(61 * time.Second)
				return domain.DecisionResult{}, fmt.Errorf("%w: http 502", apperr.ErrTransient)
			}),
		f.srv.EXPECT().
			UpdateStatus(gomock.Any(), "o1", domain.StatusCancelled, gomock.Any()).
			Return(domain.DecisionResult{Success: true, Order: pending("o1")}, nil),
	)

	_, err := f.agent.Accept(ctx, "o1")
	require.ErrorIs(t, err, apperr.ErrTransient)

	_, held := f.agent.Offer()
	require.False(t, held)
	require.Equal(t, []partner.CloseReason{partner.ReasonTimeout}, f.notices.closed("o1"))
}

func TestAgent_DecisionErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err       error
		keepOffer bool
		reason    partner.CloseReason
	}{
		"transient keeps offer": {err: fmt.Errorf("%w: http 502", apperr.ErrTransient), keepOffer: true},
		"not found is stale":    {err: fmt.Errorf("%w: http 404", apperr.ErrNotFound), reason: partner.ReasonStale},
		"conflict is lost":      {err: fmt.Errorf("%w: http 409", apperr.ErrConflict), reason: partner.ReasonLost},
		"forbidden is refused":  {err: fmt.Errorf("%w: declined", apperr.ErrForbidden), reason: partner.ReasonRefused},
	}
	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			ctx := context.Background()

			f.agent.HandleEvent(ctx, offerEvent(domain.EventNewOrder, pending("o1")))
			f.srv.EXPECT().
				UpdateStatus(gomock.Any(), "o1", domain.StatusConfirmed, gomock.Any()).
				Return(domain.DecisionResult{}, tc.err)

			_, err := f.agent.Accept(ctx, "o1")
			require.True(t, errors.Is(err, tc.err))

			_, ok := f.agent.Offer()
			require.Equal(t, tc.keepOffer, ok)
			if tc.keepOffer {
				require.Empty(t, f.notices.closed("o1"))
				_, _, timing := f.timer.Remaining()
				require.True(t, timing)
				return
			}
			require.Equal(t, []partner.CloseReason{tc.reason}, f.notices.closed("o1"))
		})
	}
}

func TestAgent_ShowsOneOfferAtATime(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.agent.HandleEvent(ctx, offerEvent(domain.EventNewOrder, pending("o1")))
	f.agent.HandleEvent(ctx, offerEvent(domain.EventOrderAvailableAgain, pending("o2")))

	off, ok := f.agent.Offer()
	require.True(t, ok)
	require.Equal(t, "o1", off.Order.ID)
	require.Equal(t, 1, f.notices.count(partner.NoticeOfferShown))
}

func TestAgent_IgnoresOffersItAlreadyDeclined(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	o := pending("o1")
	o.Apply(domain.Decision{Actor: self, Status: domain.StatusCancelled, Kind: domain.KindReject, At: t0})
	f.agent.HandleEvent(context.Background(), offerEvent(domain.EventOrderAvailableAgain, o))

	_, ok := f.agent.Offer()
	require.False(t, ok)
}

func TestAgent_RejectClosesOffer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.agent.HandleEvent(ctx, offerEvent(domain.EventNewOrder, pending("o1")))
	f.srv.EXPECT().
		UpdateStatus(gomock.Any(), "o1", domain.StatusCancelled, gomock.Any()).
		Return(domain.DecisionResult{Success: true, Order: pending("o1")}, nil)

	_, err := f.agent.Reject(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, []partner.CloseReason{partner.ReasonRejected}, f.notices.closed("o1"))

	_, err = f.agent.Reject(ctx, "o1")
	require.ErrorIs(t, err, partner.ErrNoOffer)
}

func TestAgent_CancelledCurrentOrderIsCleared(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	o := confirmedBy("o1", self)
	f.agent.HandleEvent(ctx, offerEvent(domain.EventOrderStatusUpdated, o))
	_, ok := f.agent.Current()
	require.True(t, ok)

	f.agent.HandleEvent(ctx, domain.Event{Type: domain.EventOrderCancelled, OrderID: "o1"})
	_, ok = f.agent.Current()
	require.False(t, ok)
	require.Equal(t, 1, f.notices.count(partner.NoticeMessage))
}

func TestAgent_DeliverClearsCurrent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.agent.HandleEvent(ctx, offerEvent(domain.EventOrderStatusUpdated, confirmedBy("o1", self)))
	f.srv.EXPECT().
		UpdateStatus(gomock.Any(), "o1", domain.StatusDelivered, gomock.Any()).
		Return(domain.DecisionResult{Success: true, AssignedTo: self}, nil)

	res, err := f.agent.Deliver(ctx, "o1")
	require.NoError(t, err)
	require.True(t, res.Success)
	_, ok := f.agent.Current()
	require.False(t, ok)

	_, err = f.agent.Deliver(ctx, "o1")
	require.ErrorIs(t, err, partner.ErrNoOffer)
}

func TestAgent_ReconcileDiscardsStaleOfferWithoutReject(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.agent.HandleEvent(ctx, offerEvent(domain.EventNewOrder, pending("x")))

	f.srv.EXPECT().ActiveOrders(gomock.Any()).Return(nil, nil)
	f.srv.EXPECT().PendingLiveOrders(gomock.Any()).Return(nil, nil)

	require.NoError(t, f.agent.Reconcile(ctx))

	_, ok := f.agent.Offer()
	require.False(t, ok)
	require.Equal(t, []partner.CloseReason{partner.ReasonStale}, f.notices.closed("x"))

	f.clock.Advance(2 * time.Minute)
	f.timer.Check()
}

func TestAgent_ReconcileKeepsLiveOfferAndItsDeadline(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.agent.HandleEvent(ctx, offerEvent(domain.EventNewOrder, pending("o1")))
	f.clock.Advance(20 * time.Second)

	f.srv.EXPECT().ActiveOrders(gomock.Any()).Return(nil, nil)
	f.srv.EXPECT().PendingLiveOrders(gomock.Any()).Return([]domain.Order{pending("o1")}, nil)
	require.NoError(t, f.agent.Reconcile(ctx))

	off, ok := f.agent.Offer()
	require.True(t, ok)
	require.Equal(t, t0.Add(60*time.Second), off.Deadline)
}

func TestAgent_ReconcileRestoresCurrentAndSurfacesPending(t *testing.T) {
	t.Parallel()

	t.Run("active order becomes current", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.srv.EXPECT().ActiveOrders(gomock.Any()).Return([]domain.Order{confirmedBy("o3", self)}, nil)
		f.srv.EXPECT().PendingLiveOrders(gomock.Any()).Return([]domain.Order{pending("o4")}, nil)

		require.NoError(t, f.agent.Reconcile(context.Background()))
		cur, ok := f.agent.Current()
		require.True(t, ok)
		require.Equal(t, "o3", cur.ID)
		_, ok = f.agent.Offer()
		require.False(t, ok)
	})

	t.Run("idle agent shows first pending order", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.srv.EXPECT().ActiveOrders(gomock.Any()).Return(nil, nil)
		f.srv.EXPECT().PendingLiveOrders(gomock.Any()).Return([]domain.Order{pending("o4"), pending("o5")}, nil)

		require.NoError(t, f.agent.Reconcile(context.Background()))
		off, ok := f.agent.Offer()
		require.True(t, ok)
		require.Equal(t, "o4", off.Order.ID)
	})
}

func TestAgent_ReconcileErrorLeavesStateAlone(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.agent.HandleEvent(ctx, offerEvent(domain.EventNewOrder, pending("o1")))
	f.srv.EXPECT().ActiveOrders(gomock.Any()).Return(nil, fmt.Errorf("%w: dial", apperr.ErrTransient))

	err := f.agent.Reconcile(ctx)
	require.ErrorIs(t, err, apperr.ErrTransient)
	_, ok := f.agent.Offer()
	require.True(t, ok)
}

func TestAgent_AutoAcceptPolicy(t *testing.T) {
	t.Parallel()
	f := newFixture(t, partner.WithDecision(partner.DecideAccept))

	f.srv.EXPECT().
		UpdateStatus(gomock.Any(), "o1", domain.StatusConfirmed, gomock.Any()).
		Return(domain.DecisionResult{Success: true, AssignedTo: self, Order: confirmedBy("o1", self)}, nil)

	f.agent.HandleEvent(context.Background(), offerEvent(domain.EventNewOrder, pending("o1")))

	require.Eventually(t, func() bool {
		_, ok := f.agent.Current()
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestAgent_UnsubscribeStopsNotices(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var extra notices
	off := f.agent.Subscribe(extra.add)
	off()

	f.agent.HandleEvent(context.Background(), offerEvent(domain.EventNewOrder, pending("o1")))
	require.Equal(t, 0, extra.count(partner.NoticeOfferShown))
	require.Equal(t, 1, f.notices.count(partner.NoticeOfferShown))
}

func TestParseDecision(t *testing.T) {
	t.Parallel()

	d, err := partner.ParseDecision("accept")
	require.NoError(t, err)
	require.Equal(t, partner.DecideAccept, d)

	_, err = partner.ParseDecision("maybe")
	require.ErrorIs(t, err, apperr.ErrInvalid)
}
