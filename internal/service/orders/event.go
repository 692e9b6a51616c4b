package orders

import (
	"time"

	"courier-dispatch/internal/domain"
)

// Event is a single upstream order event
type Event struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	Requester string    `json:"requester"`
	CreatedAt time.Time `json:"created_at"`
}

// Actor is who a cancellation is recorded against: the requester, or the
// dispatcher when the upstream event does not name one.
func (e Event) Actor() domain.PartnerID {
	if e.Requester == "" {
		return domain.SystemActor
	}
	return domain.PartnerID(e.Requester)
}
