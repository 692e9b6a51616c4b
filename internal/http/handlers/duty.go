package handlers

import (
	"net/http"

	"courier-dispatch/internal/logx"
)

// DutyHandler serves partner duty status endpoints.
type DutyHandler struct {
	duty   DutyUsecase
	orders OrdersUsecase
	logger logx.Logger
}

// NewDutyHandler creates a new DutyHandler.
func NewDutyHandler(logger logx.Logger, duty DutyUsecase, orders OrdersUsecase) *DutyHandler {
	return &DutyHandler{duty: duty, orders: orders, logger: logger}
}

// Update handles POST /duty-status/update. Coming on duty re-offers pending orders.
func (h *DutyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dutyUpdateRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	sess, err := h.duty.SetDuty(r.Context(), req.PartnerID, req.Duty)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	if req.Duty {
		if _, err := h.orders.OfferPending(r.Context(), req.PartnerID); err != nil && h.logger != nil {
			h.logger.Warn("offer pending failed", logx.Partner(req.PartnerID), logx.Err(err))
		}
	}
	writeJSON(h.logger, w, r, http.StatusOK, sessionToResponse(sess))
}

// Get handles GET /duty-status/{partner}.
func (h *DutyHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := partnerFromURL(r, "partner")
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid partner id")
		return
	}
	sess, err := h.duty.Status(r.Context(), p)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, sessionToResponse(sess))
}

// Heartbeat handles POST /duty-status/heartbeat.
func (h *DutyHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	sess, err := h.duty.Heartbeat(r.Context(), req.PartnerID)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, sessionToResponse(sess))
}
