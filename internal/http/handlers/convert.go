package handlers

import "courier-dispatch/internal/domain"

func decisionToResponse(res domain.DecisionResult) DecisionResponse {
	return DecisionResponse{
		Success:    res.Success,
		Duplicate:  res.Duplicate,
		AssignedTo: res.AssignedTo,
		Order:      res.Order,
	}
}

func sessionToResponse(s domain.DutySession) DutyResponse {
	out := DutyResponse{PartnerID: s.Partner, Duty: s.OnDuty}
	if !s.LastHeartbeat.IsZero() {
		hb := s.LastHeartbeat
		out.LastHeartbeat = &hb
	}
	return out
}

func ordersOrEmpty(list []domain.Order) []domain.Order {
	if list == nil {
		return []domain.Order{}
	}
	return list
}
