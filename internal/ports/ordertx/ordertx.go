package ordertx

import (
	"context"

	"courier-dispatch/internal/domain"
)

// Repository is the order log scoped to one transaction.
type Repository interface {
	// GetForUpdate loads the order and holds it exclusively until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (domain.Order, error)
	// AppendDecision stores d and the projection of updated, which already has d applied.
	AppendDecision(ctx context.Context, d domain.Decision, updated domain.Order) error
}

// Runner is a transaction runner
type Runner interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
