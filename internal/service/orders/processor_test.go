package orders_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/orders"
)

func TestProcessor_Handle_Created_Publishes(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := NewMockDispatchPort(ctrl)
	p := orders.NewProcessor(d, logx.Nop())

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	d.EXPECT().
		Publish(gomock.Any(), dispatch.NewOrder{ID: "order-1", Requester: "shop@example.com", CreatedAt: ts}).
		Return(domain.NewOrder("order-1", "shop@example.com", ts), true, nil)

	err := p.Handle(context.Background(), orders.Event{
		OrderID:   "order-1",
		Status:    "  CREATED  ",
		Requester: "shop@example.com",
		CreatedAt: ts,
	})
	require.NoError(t, err)
}

func TestProcessor_Handle_Created_RepublishIsNoop(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := NewMockDispatchPort(ctrl)
	p := orders.NewProcessor(d, nil)

	d.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		Return(domain.NewOrder("order-1", "", time.Now()), false, nil)

	require.NoError(t, p.Handle(context.Background(), orders.Event{OrderID: "order-1", Status: "created"}))
}

func TestProcessor_Handle_Created_ErrorReturned(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := NewMockDispatchPort(ctrl)
	p := orders.NewProcessor(d, logx.Nop())

	wantErr := errors.New("boom")
	d.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		Return(domain.Order{}, false, wantErr)

	err := p.Handle(context.Background(), orders.Event{OrderID: "order-1", Status: "created"})
	require.ErrorIs(t, err, wantErr)
}

func TestProcessor_Handle_Canceled_UsesRequesterAsActor(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := NewMockDispatchPort(ctrl)
	p := orders.NewProcessor(d, logx.Nop())

	gomock.InOrder(
		d.EXPECT().
			Cancel(gomock.Any(), "order-1", domain.PartnerID("shop@example.com")).
			Return(domain.DecisionResult{Success: true}, nil),
		d.EXPECT().
			Cancel(gomock.Any(), "order-2", domain.SystemActor).
			Return(domain.DecisionResult{Success: true}, nil),
		d.EXPECT().
			Cancel(gomock.Any(), "order-3", domain.PartnerID("shop@example.com")).
			Return(domain.DecisionResult{Success: true}, nil),
	)

	require.NoError(t, p.Handle(context.Background(), orders.Event{OrderID: "order-1", Status: "canceled", Requester: "shop@example.com"}))
	require.NoError(t, p.Handle(context.Background(), orders.Event{OrderID: "order-2", Status: "deleted"}))
	require.NoError(t, p.Handle(context.Background(), orders.Event{OrderID: "order-3", Status: "Cancelled", Requester: "shop@example.com"}))
}

func TestProcessor_Handle_Canceled_IgnoresUnknownAndFinished(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := NewMockDispatchPort(ctrl)
	p := orders.NewProcessor(d, logx.Nop())

	d.EXPECT().Cancel(gomock.Any(), "gone", gomock.Any()).Return(domain.DecisionResult{}, apperr.ErrNotFound)
	d.EXPECT().Cancel(gomock.Any(), "done", gomock.Any()).Return(domain.DecisionResult{}, apperr.ErrConflict)

	require.NoError(t, p.Handle(context.Background(), orders.Event{OrderID: "gone", Status: "canceled"}))
	require.NoError(t, p.Handle(context.Background(), orders.Event{OrderID: "done", Status: "canceled"}))
}

func TestProcessor_Handle_Canceled_InfraErrorReturned(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := NewMockDispatchPort(ctrl)
	p := orders.NewProcessor(d, logx.Nop())

	wantErr := errors.New("db down")
	d.EXPECT().Cancel(gomock.Any(), "o1", gomock.Any()).Return(domain.DecisionResult{}, wantErr)

	err := p.Handle(context.Background(), orders.Event{OrderID: "o1", Status: "canceled"})
	require.ErrorIs(t, err, wantErr)
}

func TestProcessor_Handle_UnknownStatusIgnored(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := NewMockDispatchPort(ctrl)
	p := orders.NewProcessor(d, logx.Nop())

	require.NoError(t, p.Handle(context.Background(), orders.Event{OrderID: "o1", Status: "cooking"}))
	require.NoError(t, p.Handle(context.Background(), orders.Event{OrderID: "o1", Status: "completed"}))
}
