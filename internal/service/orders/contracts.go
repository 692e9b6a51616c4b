//go:generate mockgen -source=contracts.go -destination=orders_mocks_test.go -package=orders_test

package orders

import (
	"context"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/service/dispatch"
)

// DispatchPort is the subset of the dispatch coordinator driven by upstream order events.
type DispatchPort interface {
	Publish(ctx context.Context, in dispatch.NewOrder) (domain.Order, bool, error)
	Cancel(ctx context.Context, orderID string, actor domain.PartnerID) (domain.DecisionResult, error)
}
