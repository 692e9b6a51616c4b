package dispatch_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/jonboulle/clockwork"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/repository/memory"
	"courier-dispatch/internal/service/dispatch"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newCtrl(t *testing.T) *gomock.Controller {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return ctrl
}

type fakeDuty struct {
	mu sync.Mutex
	on map[domain.PartnerID]bool
}

func newFakeDuty(partners ...domain.PartnerID) *fakeDuty {
	d := &fakeDuty{on: make(map[domain.PartnerID]bool)}
	for _, p := range partners {
		d.on[p] = true
	}
	return d
}

func (d *fakeDuty) set(p domain.PartnerID, on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.on[p] = on
}

func (d *fakeDuty) IsOnDuty(_ context.Context, p domain.PartnerID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.on[p], nil
}

func (d *fakeDuty) OnDuty(context.Context) ([]domain.PartnerID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.PartnerID, 0, len(d.on))
	for p, on := range d.on {
		if on {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

type inbox struct {
	mu     sync.Mutex
	events map[domain.PartnerID][]domain.Event
}

func newInbox() *inbox {
	return &inbox{events: make(map[domain.PartnerID][]domain.Event)}
}

func (b *inbox) Notify(_ context.Context, to domain.PartnerID, ev domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[to] = append(b.events[to], ev)
	return nil
}

func (b *inbox) of(p domain.PartnerID) []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Event(nil), b.events[p]...)
}

func (b *inbox) types(p domain.PartnerID) []domain.EventType {
	var out []domain.EventType
	for _, ev := range b.of(p) {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	coord *dispatch.Coordinator
	store *memory.OrderStore
	duty  *fakeDuty
	inbox *inbox
	clock *clockwork.FakeClock
}

func newFixture(t *testing.T, policy dispatch.Policy, onDuty ...domain.PartnerID) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.NewOrderStore(),
		duty:  newFakeDuty(onDuty...),
		inbox: newInbox(),
		clock: clockwork.NewFakeClockAt(t0),
	}
	f.coord = dispatch.NewCoordinator(f.store, f.duty, f.inbox, policy,
		dispatch.WithClock(f.clock),
		dispatch.WithLogger(logx.Nop()),
	)
	return f
}

func (f *fixture) publish(t *testing.T, id string) domain.Order {
	t.Helper()
	o, created, err := f.coord.Publish(context.Background(), dispatch.NewOrder{ID: id, Requester: "shop@example.com"})
	if err != nil || !created {
		t.Fatalf("publish %s: created=%v err=%v", id, created, err)
	}
	return o
}

func countStatus(o domain.Order, st domain.Status, kind domain.DecisionKind) int {
	n := 0
	for _, d := range o.History {
		if d.Status == st && d.Kind == kind {
			n++
		}
	}
	return n
}

// hookedDuty runs hook once, the first time the duty of target is looked up.
type hookedDuty struct {
	*fakeDuty
	target domain.PartnerID
	once   sync.Once
	hook   func()
}

func (d *hookedDuty) IsOnDuty(ctx context.Context, p domain.PartnerID) (bool, error) {
	if p == d.target && d.hook != nil {
		d.once.Do(d.hook)
	}
	return d.fakeDuty.IsOnDuty(ctx, p)
}
