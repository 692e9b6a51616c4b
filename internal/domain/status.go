package domain

import "strings"

// Status is the coarse lifecycle state of an order.
type Status string

// List of order statuses.
const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

var allowedStatuses = [...]Status{
	StatusPending, StatusConfirmed, StatusDelivered, StatusCancelled,
}

// Valid checks if the Status is one of the known statuses.
func (s Status) Valid() bool {
	for _, v := range allowedStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// rank orders statuses by precedence when deriving the current status from a log.
func (s Status) rank() int {
	switch s {
	case StatusConfirmed:
		return 1
	case StatusCancelled:
		return 2
	case StatusDelivered:
		return 3
	default:
		return 0
	}
}

// ParseStatus normalizes raw input ("  confirmed ") into a Status.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// DecisionKind distinguishes order-level transitions from partner-scoped declines.
type DecisionKind string

// List of decision kinds.
const (
	KindTransition DecisionKind = "transition"
	KindReject     DecisionKind = "reject"
	KindTimeout    DecisionKind = "timeout"
)

// PartnerScoped reports whether the decision only concerns its actor
// and leaves the order status untouched.
func (k DecisionKind) PartnerScoped() bool {
	return k == KindReject || k == KindTimeout
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusDelivered, StatusCancelled},
}

// CanTransition reports whether an order-level entry may move from to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
