package domain

import "time"

// EventType names a real-time channel event.
type EventType string

// Order lifecycle events delivered to partners.
const (
	EventNewOrder            EventType = "new-order"
	EventOrderAvailableAgain EventType = "order-available-again"
	EventOrderAssigned       EventType = "order-assigned"
	EventOrderStatusUpdated  EventType = "order-status-updated"
	EventOrderCancelled      EventType = "order-cancelled"
)

// Offers reports whether the event opens a decision window on the client.
func (t EventType) Offers() bool {
	return t == EventNewOrder || t == EventOrderAvailableAgain
}

// Event is a hint sent to one partner. Delivery is at-least-once and may be
// replayed or lost across reconnects, so receivers re-synchronize instead of trusting it.
type Event struct {
	Type       EventType `json:"type"`
	OrderID    string    `json:"order_id,omitempty"`
	AssignedTo PartnerID `json:"assigned_to,omitempty"`
	Order      *Order    `json:"order,omitempty"`
	At         time.Time `json:"at"`
}

// OrderEvent builds an event carrying a snapshot of o.
func OrderEvent(t EventType, o Order, at time.Time) Event {
	snap := o.Clone()
	return Event{
		Type:       t,
		OrderID:    o.ID,
		AssignedTo: o.AssignedTo(),
		Order:      &snap,
		At:         at,
	}
}
