package realtime

import "courier-dispatch/internal/domain"

// Client message types.
const (
	TypeJoin      = "join"
	TypeHeartbeat = "heartbeat"
	TypeJoined    = "joined"
)

// ClientMessage is what partners send over the channel.
type ClientMessage struct {
	Type      string           `json:"type"`
	PartnerID domain.PartnerID `json:"partner_id,omitempty"`
}

// Ack confirms a join. Events are routed to the connection only after it.
type Ack struct {
	Type         string           `json:"type"`
	PartnerID    domain.PartnerID `json:"partner_id"`
	ConnectionID string           `json:"connection_id"`
}
