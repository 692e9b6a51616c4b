package kafka

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"courier-dispatch/internal/service/orders"
)

// EventDTO is the wire form of an upstream order lifecycle event.
type EventDTO struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	Requester string    `json:"requester,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToDomain converts EventDTO to orders.Event
func ToDomain(dto EventDTO) orders.Event {
	return orders.Event{
		OrderID:   strings.TrimSpace(dto.OrderID),
		Status:    strings.TrimSpace(dto.Status),
		Requester: strings.TrimSpace(dto.Requester),
		CreatedAt: dto.CreatedAt,
	}
}

// decodeEvent parses one message value. Every failure is permanent.
func decodeEvent(raw []byte) (orders.Event, error) {
	var dto EventDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return orders.Event{}, Permanent(fmt.Errorf("%w: %v", errMalformed, err))
	}
	ev := ToDomain(dto)
	if ev.OrderID == "" {
		return orders.Event{}, Permanent(fmt.Errorf("%w (status %q)", errNoOrderID, ev.Status))
	}
	return ev, nil
}
