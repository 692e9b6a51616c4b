package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
)

// Header names shared with the dispatch server.
const (
	PartnerHeader   = "X-Partner-ID"
	RequestIDHeader = "X-Request-Id"
)

const maxErrorBody = 4 << 10

type decisionBody struct {
	Success    bool             `json:"success"`
	Duplicate  bool             `json:"duplicate"`
	AssignedTo domain.PartnerID `json:"assigned_to"`
	Order      *domain.Order    `json:"order"`
}

type errorBody struct {
	Error string `json:"error"`
}

type dutyBody struct {
	PartnerID     domain.PartnerID `json:"partner_id"`
	Duty          bool             `json:"duty"`
	LastHeartbeat *time.Time       `json:"last_heartbeat,omitempty"`
}

// API is the REST client of one partner.
type API struct {
	base    *url.URL
	partner domain.PartnerID
	client  *http.Client
}

// NewAPI creates a client for baseURL. A nil client uses a 10s timeout.
func NewAPI(baseURL string, partner domain.PartnerID, client *http.Client) (*API, error) {
	if !partner.Valid() {
		return nil, fmt.Errorf("%w: partner id", apperr.ErrInvalid)
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: server url %q", apperr.ErrInvalid, baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &API{base: u, partner: partner, client: client}, nil
}

// Partner returns the identity this client acts as.
func (a *API) Partner() domain.PartnerID { return a.partner }

// ActiveOrders lists orders currently assigned to the partner.
func (a *API) ActiveOrders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	err := a.do(ctx, http.MethodGet, "/orders/active/"+url.PathEscape(string(a.partner)), "", nil, &out)
	return out, err
}

// PendingLiveOrders lists PENDING orders the partner may still take.
func (a *API) PendingLiveOrders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	path := "/orders/pending/live?partner=" + url.QueryEscape(string(a.partner))
	err := a.do(ctx, http.MethodGet, path, "", nil, &out)
	return out, err
}

// UpdateStatus requests a transition. A lost race is a result with Success=false, not an error.
func (a *API) UpdateStatus(ctx context.Context, orderID string, status domain.Status, requestID string) (domain.DecisionResult, error) {
	body := map[string]string{"status": string(status), "partner_id": string(a.partner)}
	path := "/orders/" + url.PathEscape(orderID) + "/status"

	var resp decisionBody
	err := a.do(ctx, http.MethodPatch, path, requestID, body, &resp)
	if err != nil && !errors.Is(err, errLostRace) {
		return domain.DecisionResult{}, err
	}
	res := domain.DecisionResult{
		Success:    resp.Success,
		Duplicate:  resp.Duplicate,
		AssignedTo: resp.AssignedTo,
	}
	if resp.Order != nil {
		res.Order = *resp.Order
	}
	return res, nil
}

// SetDuty switches the partner on or off duty.
func (a *API) SetDuty(ctx context.Context, on bool) (domain.DutySession, error) {
	var resp dutyBody
	err := a.do(ctx, http.MethodPost, "/duty-status/update", "", dutyBody{PartnerID: a.partner, Duty: on}, &resp)
	if err != nil {
		return domain.DutySession{}, err
	}
	return resp.session(), nil
}

// Heartbeat refreshes the duty session.
func (a *API) Heartbeat(ctx context.Context) (domain.DutySession, error) {
	var resp dutyBody
	err := a.do(ctx, http.MethodPost, "/duty-status/heartbeat", "", map[string]string{"partner_id": string(a.partner)}, &resp)
	if err != nil {
		return domain.DutySession{}, err
	}
	return resp.session(), nil
}

func (b dutyBody) session() domain.DutySession {
	s := domain.DutySession{Partner: b.PartnerID, OnDuty: b.Duty}
	if b.LastHeartbeat != nil {
		s.LastHeartbeat = *b.LastHeartbeat
	}
	return s
}

// errLostRace marks a 409 whose body is a decision, decoded into out.
var errLostRace = errors.New("lost race")

func (a *API) do(ctx context.Context, method, path, requestID string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", apperr.ErrInvalid, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(PartnerHeader, string(a.partner))
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID != "" {
		req.Header.Set(RequestIDHeader, requestID)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", apperr.ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode %s %s: %v", apperr.ErrTransient, method, path, err)
		}
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode == http.StatusConflict {
		if d, ok := out.(*decisionBody); ok && decodeDecision(raw, d) {
			return errLostRace
		}
	}
	return statusError(resp.StatusCode, raw)
}

func decodeDecision(raw []byte, d *decisionBody) bool {
	var probe struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Success == nil {
		return false
	}
	return json.Unmarshal(raw, d) == nil
}

func statusError(code int, raw []byte) error {
	msg := strings.TrimSpace(string(raw))
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil && eb.Error != "" {
		msg = eb.Error
	}

	var kind error
	switch {
	case code == http.StatusBadRequest:
		kind = apperr.ErrInvalid
	case code == http.StatusForbidden:
		kind = apperr.ErrForbidden
	case code == http.StatusNotFound:
		kind = apperr.ErrNotFound
	case code == http.StatusConflict:
		kind = apperr.ErrConflict
	case code == http.StatusTooManyRequests, code >= 500:
		kind = apperr.ErrTransient
	default:
		kind = apperr.ErrInvalid
	}
	return fmt.Errorf("%w: http %d: %s", kind, code, msg)
}
