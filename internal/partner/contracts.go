//go:generate mockgen -source=contracts.go -destination=partner_mocks_test.go -package=partner_test

package partner

import (
	"context"

	"courier-dispatch/internal/domain"
)

// Server is the partner-facing REST surface.
type Server interface {
	ActiveOrders(ctx context.Context) ([]domain.Order, error)
	PendingLiveOrders(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.Status, requestID string) (domain.DecisionResult, error)
	SetDuty(ctx context.Context, on bool) (domain.DutySession, error)
	Heartbeat(ctx context.Context) (domain.DutySession, error)
}

type counter interface {
	Inc()
}
