//go:generate mockgen -source=contracts.go -destination=dispatch_mocks_test.go -package=dispatch_test

package dispatch

import (
	"context"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/ordertx"
)

// OrderRepository is the durable order log.
type OrderRepository interface {
	ordertx.Runner
	Create(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
	List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error)
}

// DutyChecker answers eligibility questions about partners.
type DutyChecker interface {
	IsOnDuty(ctx context.Context, p domain.PartnerID) (bool, error)
	OnDuty(ctx context.Context) ([]domain.PartnerID, error)
}

// Notifier delivers real-time events to one partner. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, to domain.PartnerID, ev domain.Event) error
}
