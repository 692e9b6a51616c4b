package kafka

import "errors"

var (
	errMalformed = errors.New("malformed order event")
	errNoOrderID = errors.New("order event without order_id")
)

// PermanentError marks a handler failure that redelivery cannot fix.
// The consumer commits past such messages instead of retrying them.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string {
	if e.Err == nil {
		return "permanent order event failure"
	}
	return "permanent: " + e.Err.Error()
}

func (e PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the consumer skips the message.
func Permanent(err error) error {
	return PermanentError{Err: err}
}
