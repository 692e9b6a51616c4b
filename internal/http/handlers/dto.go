package handlers

import (
	"time"

	"courier-dispatch/internal/domain"
)

type createOrderRequest struct {
	ID        string    `json:"id"`
	Requester string    `json:"requester"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type cancelOrderRequest struct {
	Actor domain.PartnerID `json:"actor,omitempty"`
}

type updateStatusRequest struct {
	Status    string           `json:"status"`
	PartnerID domain.PartnerID `json:"partner_id"`
}

// DecisionResponse is the body of PATCH /orders/{id}/status.
type DecisionResponse struct {
	Success    bool             `json:"success"`
	Duplicate  bool             `json:"duplicate,omitempty"`
	AssignedTo domain.PartnerID `json:"assigned_to,omitempty"`
	Order      domain.Order     `json:"order"`
}

type dutyUpdateRequest struct {
	PartnerID domain.PartnerID `json:"partner_id"`
	Duty      bool             `json:"duty"`
}

type heartbeatRequest struct {
	PartnerID domain.PartnerID `json:"partner_id"`
}

// DutyResponse describes a partner's effective duty status.
type DutyResponse struct {
	PartnerID     domain.PartnerID `json:"partner_id"`
	Duty          bool             `json:"duty"`
	LastHeartbeat *time.Time       `json:"last_heartbeat,omitempty"`
}
