package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/dispatch"
)

// OrderHandler serves order endpoints for partners and the ordering entity.
type OrderHandler struct {
	uc     OrdersUsecase
	logger logx.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(logger logx.Logger, uc OrdersUsecase) *OrderHandler {
	return &OrderHandler{uc: uc, logger: logger}
}

// Create handles POST /orders. Publishing an existing id returns it with 200.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	o, created, err := h.uc.Publish(r.Context(), dispatch.NewOrder{
		ID:        req.ID,
		Requester: req.Requester,
		CreatedAt: req.CreatedAt,
	})
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		w.Header().Set("Location", "/orders/"+url.PathEscape(o.ID))
	}
	writeJSON(h.logger, w, r, status, o)
}

// Cancel handles POST /orders/{id}/cancel. The body is optional.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if r.ContentLength != 0 {
		if ok := decodeJSON(h.logger, w, r, &req); !ok {
			return
		}
	}

	res, err := h.uc.Cancel(r.Context(), chi.URLParam(r, "id"), req.Actor)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, decisionToResponse(res))
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.uc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, o)
}

// Active handles GET /orders/active/{partner}.
func (h *OrderHandler) Active(w http.ResponseWriter, r *http.Request) {
	p, ok := partnerFromURL(r, "partner")
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid partner id")
		return
	}
	list, err := h.uc.ActiveOrders(r.Context(), p)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, ordersOrEmpty(list))
}

// PendingLive handles GET /orders/pending/live?partner=.
func (h *OrderHandler) PendingLive(w http.ResponseWriter, r *http.Request) {
	p := domain.PartnerID(strings.TrimSpace(r.URL.Query().Get("partner")))
	list, err := h.uc.PendingLiveOrders(r.Context(), p)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, ordersOrEmpty(list))
}

// UpdateStatus handles PATCH /orders/{id}/status.
// A lost race answers 409 with success=false and the current assignee.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	st, ok := domain.ParseStatus(req.Status)
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid status")
		return
	}
	if !req.PartnerID.Valid() {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid partner id")
		return
	}

	res, err := h.uc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), st, req.PartnerID)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusConflict
	}
	writeJSON(h.logger, w, r, status, decisionToResponse(res))
}

