//go:generate mockgen -source=contracts.go -destination=handlers_mocks_test.go -package=handlers_test

package handlers

import (
	"context"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/service/dispatch"
)

// OrdersUsecase is the dispatch surface exposed over HTTP.
type OrdersUsecase interface {
	Publish(ctx context.Context, in dispatch.NewOrder) (domain.Order, bool, error)
	Cancel(ctx context.Context, orderID string, actor domain.PartnerID) (domain.DecisionResult, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.Status, actor domain.PartnerID) (domain.DecisionResult, error)
	Get(ctx context.Context, orderID string) (domain.Order, error)
	ActiveOrders(ctx context.Context, p domain.PartnerID) ([]domain.Order, error)
	PendingLiveOrders(ctx context.Context, p domain.PartnerID) ([]domain.Order, error)
	OfferPending(ctx context.Context, p domain.PartnerID) (int, error)
}

// DutyUsecase manages partner availability.
type DutyUsecase interface {
	SetDuty(ctx context.Context, p domain.PartnerID, on bool) (domain.DutySession, error)
	Heartbeat(ctx context.Context, p domain.PartnerID) (domain.DutySession, error)
	Status(ctx context.Context, p domain.PartnerID) (domain.DutySession, error)
}
