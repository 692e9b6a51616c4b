//go:generate mockgen -source=contracts.go -destination=duty_mocks_test.go -package=duty_test

package duty

import (
	"context"

	"courier-dispatch/internal/domain"
)

// Store keeps the last known duty session of every partner.
type Store interface {
	Get(ctx context.Context, p domain.PartnerID) (domain.DutySession, bool, error)
	Put(ctx context.Context, s domain.DutySession) error
	List(ctx context.Context) ([]domain.DutySession, error)
}

// OrderLister finds orders a partner still owns.
type OrderLister interface {
	List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error)
}
