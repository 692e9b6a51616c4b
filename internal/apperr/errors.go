package apperr

import "errors"

// ErrInvalid is returned when the input fails domain validation (HTTP 400).
var ErrInvalid = errors.New("invalid input")

// ErrForbidden is returned when the actor is not allowed to perform the transition (HTTP 403).
var ErrForbidden = errors.New("actor not eligible")

// ErrConflict indicates the order was already decided (HTTP 409). Never retried.
var ErrConflict = errors.New("conflict")

// ErrNotFound indicates that the requested order does not exist.
var ErrNotFound = errors.New("not found")

// ErrTransient marks transport or upstream failures that are safe to retry.
var ErrTransient = errors.New("transient failure")

// IsRetryable reports whether err may be retried with the same request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
