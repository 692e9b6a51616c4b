package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// PartnerID is the identity of a delivery partner (the login e-mail on mobile clients).
type PartnerID string

// SystemActor records decisions taken by the dispatcher itself.
const SystemActor PartnerID = "dispatcher"

// Valid reports whether the identity is usable as an actor.
func (p PartnerID) Valid() bool {
	return strings.TrimSpace(string(p)) != ""
}

// Decision is one append-only entry of an order's status history.
type Decision struct {
	Actor  PartnerID    `json:"actor"`
	Status Status       `json:"status"`
	Kind   DecisionKind `json:"kind"`
	At     time.Time    `json:"at"`
}

// Order is one delivery request together with its decision log.
//
// The current status and assignee are a projection of History kept up to date
// by Apply; DeriveStatus recomputes the same values from scratch.
type Order struct {
	ID         string
	BaseStatus Status
	Requester  string
	CreatedAt  time.Time
	History    []Decision

	rejectedBy []PartnerID
	current    Status
	assignee   PartnerID
}

// NewOrder returns a PENDING order with an empty log.
func NewOrder(id, requester string, createdAt time.Time) Order {
	return Order{
		ID:         id,
		BaseStatus: StatusPending,
		Requester:  requester,
		CreatedAt:  createdAt,
		current:    StatusPending,
	}
}

// Restore rebuilds an order by replaying its stored history.
func Restore(id, requester string, base Status, createdAt time.Time, history []Decision) Order {
	o := Order{
		ID:         id,
		BaseStatus: base,
		Requester:  requester,
		CreatedAt:  createdAt,
		current:    base,
	}
	for _, d := range history {
		o.Apply(d)
	}
	return o
}

// Status returns the cached current status.
func (o Order) Status() Status {
	if o.current == "" {
		return o.BaseStatus
	}
	return o.current
}

// AssignedTo returns the partner owning the order, if any.
func (o Order) AssignedTo() PartnerID {
	return o.assignee
}

// RejectedBy returns the partners that declined or let the offer expire.
func (o Order) RejectedBy() []PartnerID {
	return append([]PartnerID(nil), o.rejectedBy...)
}

// HasRejected reports whether p already declined the order.
func (o Order) HasRejected(p PartnerID) bool {
	for _, r := range o.rejectedBy {
		if r == p {
			return true
		}
	}
	return false
}

// LastAt returns the timestamp of the newest log entry, or CreatedAt.
func (o Order) LastAt() time.Time {
	if n := len(o.History); n > 0 {
		return o.History[n-1].At
	}
	return o.CreatedAt
}

// Apply appends d to the log and updates the projection incrementally.
func (o *Order) Apply(d Decision) {
	o.History = append(o.History, d)
	if o.current == "" {
		o.current = o.BaseStatus
	}
	if d.Kind.PartnerScoped() {
		if !o.HasRejected(d.Actor) {
			o.rejectedBy = append(o.rejectedBy, d.Actor)
		}
		return
	}
	if d.Status.rank() >= o.current.rank() {
		o.current = d.Status
	}
	if d.Status == StatusConfirmed && o.assignee == "" {
		o.assignee = d.Actor
	}
}

// Clone returns a deep copy safe to hand out of a store.
func (o Order) Clone() Order {
	c := o
	c.History = append([]Decision(nil), o.History...)
	c.rejectedBy = append([]PartnerID(nil), o.rejectedBy...)
	return c
}

// Verify recomputes the projection from the full log and compares it with the cache.
func (o Order) Verify() bool {
	st, who := DeriveStatus(o.BaseStatus, o.History)
	return st == o.Status() && who == o.assignee
}

// DeriveStatus scans a decision log: DELIVERED wins over CANCELLED, which wins
// over CONFIRMED, which wins over the base status. Partner-scoped declines are ignored.
// The first CONFIRMED entry names the assignee.
func DeriveStatus(base Status, history []Decision) (Status, PartnerID) {
	current := base
	var assignee PartnerID
	for _, d := range history {
		if d.Kind.PartnerScoped() {
			continue
		}
		if d.Status.rank() >= current.rank() {
			current = d.Status
		}
		if d.Status == StatusConfirmed && assignee == "" {
			assignee = d.Actor
		}
	}
	return current, assignee
}

// DecisionFor returns the latest entry recorded by p, if any.
func (o Order) DecisionFor(p PartnerID) (Decision, bool) {
	for i := len(o.History) - 1; i >= 0; i-- {
		if o.History[i].Actor == p {
			return o.History[i], true
		}
	}
	return Decision{}, false
}

// DecisionResult is the coordinator's answer to an accept/reject attempt.
// Success=false with a nil error means the race was lost: close the offer, do not retry.
type DecisionResult struct {
	Success    bool
	Duplicate  bool
	AssignedTo PartnerID
	Order      Order
}

type orderJSON struct {
	ID         string      `json:"id"`
	Status     Status      `json:"status"`
	BaseStatus Status      `json:"base_status"`
	Requester  string      `json:"requester,omitempty"`
	AssignedTo PartnerID   `json:"assigned_to,omitempty"`
	RejectedBy []PartnerID `json:"rejected_by"`
	History    []Decision  `json:"status_history"`
	CreatedAt  time.Time   `json:"created_at"`
}

// MarshalJSON encodes the order with its derived status.
func (o Order) MarshalJSON() ([]byte, error) {
	rejected := o.RejectedBy()
	if rejected == nil {
		rejected = []PartnerID{}
	}
	history := o.History
	if history == nil {
		history = []Decision{}
	}
	return json.Marshal(orderJSON{
		ID:         o.ID,
		Status:     o.Status(),
		BaseStatus: o.BaseStatus,
		Requester:  o.Requester,
		AssignedTo: o.assignee,
		RejectedBy: rejected,
		History:    history,
		CreatedAt:  o.CreatedAt,
	})
}

// UnmarshalJSON rebuilds the projection from the transmitted log.
func (o *Order) UnmarshalJSON(b []byte) error {
	var raw orderJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	base := raw.BaseStatus
	if base == "" {
		base = StatusPending
	}
	*o = Restore(raw.ID, raw.Requester, base, raw.CreatedAt, raw.History)
	return nil
}

// OrderFilter selects orders by current status and assignee. Empty fields match everything.
type OrderFilter struct {
	Statuses   []Status
	AssignedTo PartnerID
}

// Match reports whether o passes the filter.
func (f OrderFilter) Match(o Order) bool {
	if f.AssignedTo != "" && o.AssignedTo() != f.AssignedTo {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if o.Status() == s {
			return true
		}
	}
	return false
}
