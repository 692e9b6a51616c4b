package duty_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/repository/memory"
	"courier-dispatch/internal/service/duty"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*duty.Service, *memory.OrderStore, *clockwork.FakeClock) {
	t.Helper()
	orders := memory.NewOrderStore()
	clock := clockwork.NewFakeClockAt(t0)
	return duty.NewService(memory.NewDutyStore(), orders, 15*time.Minute, clock, logx.Nop()), orders, clock
}

func TestService_SetDutyAndStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newService(t)

	sess, err := svc.Status(ctx, "a")
	require.NoError(t, err)
	require.False(t, sess.OnDuty)

	_, err = svc.SetDuty(ctx, "a", true)
	require.NoError(t, err)
	_, err = svc.SetDuty(ctx, "b", true)
	require.NoError(t, err)

	on, err := svc.IsOnDuty(ctx, "a")
	require.NoError(t, err)
	require.True(t, on)

	list, err := svc.OnDuty(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.PartnerID{"a", "b"}, list)

	_, err = svc.SetDuty(ctx, "a", false)
	require.NoError(t, err)
	list, err = svc.OnDuty(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.PartnerID{"b"}, list)
}

func TestService_HeartbeatKeepsSessionAlive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, clock := newService(t)

	_, err := svc.SetDuty(ctx, "a", true)
	require.NoError(t, err)

	clock.Advance(12 * time.Minute)
	_, err = svc.Heartbeat(ctx, "a")
	require.NoError(t, err)

	clock.Advance(12 * time.Minute)
	on, err := svc.IsOnDuty(ctx, "a")
	require.NoError(t, err)
	require.True(t, on)

	clock.Advance(4 * time.Minute)
	on, err = svc.IsOnDuty(ctx, "a")
	require.NoError(t, err)
	require.False(t, on, "heartbeat older than the TTL")

	list, err := svc.OnDuty(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestService_HeartbeatDoesNotPutPartnerOnDuty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newService(t)

	sess, err := svc.Heartbeat(ctx, "a")
	require.NoError(t, err)
	require.False(t, sess.OnDuty)

	on, err := svc.IsOnDuty(ctx, "a")
	require.NoError(t, err)
	require.False(t, on)
}

func TestService_OffDutyWithActiveOrderConflicts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, orders, _ := newService(t)

	o := domain.NewOrder("o1", "", t0)
	o.Apply(domain.Decision{Actor: "a", Status: domain.StatusConfirmed, Kind: domain.KindTransition, At: t0})
	require.NoError(t, orders.Create(ctx, o))

	_, err := svc.SetDuty(ctx, "a", true)
	require.NoError(t, err)

	_, err = svc.SetDuty(ctx, "a", false)
	require.ErrorIs(t, err, apperr.ErrConflict)

	on, err := svc.IsOnDuty(ctx, "a")
	require.NoError(t, err)
	require.True(t, on)

	_, err = svc.SetDuty(ctx, "b", false)
	require.NoError(t, err)
}

func TestService_InvalidPartner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newService(t)

	_, err := svc.SetDuty(ctx, " ", true)
	require.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = svc.Heartbeat(ctx, "")
	require.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = svc.IsOnDuty(ctx, "")
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestService_StoreErrorsPropagate(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := NewMockStore(ctrl)
	orders := NewMockOrderLister(ctrl)
	svc := duty.NewService(store, orders, time.Minute, clockwork.NewFakeClockAt(t0), nil)

	boom := errors.New("redis down")
	orders.EXPECT().
		List(gomock.Any(), domain.OrderFilter{Statuses: []domain.Status{domain.StatusConfirmed}, AssignedTo: "a"}).
		Return(nil, boom)
	_, err := svc.SetDuty(context.Background(), "a", false)
	require.ErrorIs(t, err, boom)

	store.EXPECT().Put(gomock.Any(), domain.DutySession{Partner: "a", OnDuty: true, LastHeartbeat: t0}).Return(boom)
	_, err = svc.SetDuty(context.Background(), "a", true)
	require.ErrorIs(t, err, boom)

	store.EXPECT().List(gomock.Any()).Return(nil, boom)
	_, err = svc.OnDuty(context.Background())
	require.ErrorIs(t, err, boom)

	store.EXPECT().Get(gomock.Any(), domain.PartnerID("a")).Return(domain.DutySession{}, false, boom)
	_, err = svc.IsOnDuty(context.Background(), "a")
	require.ErrorIs(t, err, boom)
}
