package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"courier-dispatch/internal/apperr"
)

// SQLSTATE codes the order log reacts to.
const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
	lockNotAvailable     = "55P03"
)

// orderErr maps driver failures of an operation on order id onto apperr sentinels.
// A duplicate id is a conflict, a missing row is not found, and lock contention
// is transient so callers may retry the same decision.
func orderErr(op, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("order %q: %w", id, apperr.ErrNotFound)
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		switch pgerr.Code {
		case uniqueViolation:
			return fmt.Errorf("order %q: %w", id, apperr.ErrConflict)
		case serializationFailure, deadlockDetected, lockNotAvailable:
			return fmt.Errorf("%s %q: %w: %s", op, id, apperr.ErrTransient, pgerr.Message)
		}
	}
	return fmt.Errorf("%s %q: %w", op, id, err)
}
