package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

const (
	sendBuffer     = 64
	writeDeadline  = 5 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 25 * time.Second
	maxMessageSize = 4096
)

// ErrSlowConsumer is returned when a connection's send buffer is full.
var ErrSlowConsumer = errors.New("realtime: send buffer full")

// Heartbeater refreshes a partner's duty session.
type Heartbeater interface {
	Heartbeat(ctx context.Context, p domain.PartnerID) (domain.DutySession, error)
}

type conn struct {
	id      string
	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	partner domain.PartnerID
}

// Hub routes events to the connections bound to each partner.
type Hub struct {
	mu        sync.RWMutex
	conns     map[*conn]struct{}
	byPartner map[domain.PartnerID]map[*conn]struct{}

	upgrader  websocket.Upgrader
	heartbeat Heartbeater
	logger    logx.Logger
	gauge     prometheus.Gauge
}

// NewHub creates a Hub. heartbeat and gauge may be nil.
func NewHub(heartbeat Heartbeater, logger logx.Logger, gauge prometheus.Gauge) *Hub {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Hub{
		conns:     make(map[*conn]struct{}),
		byPartner: make(map[domain.PartnerID]map[*conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		heartbeat: heartbeat,
		logger:    logger,
		gauge:     gauge,
	}
}

// Notify queues ev for every connection joined as to. A partner without
// connections is not an error: it re-synchronizes when it reconnects.
func (h *Hub) Notify(_ context.Context, to domain.PartnerID, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	var errs []error
	for c := range h.byPartner[to] {
		select {
		case c.send <- data:
		default:
			errs = append(errs, fmt.Errorf("%w: connection %s", ErrSlowConsumer, c.id))
		}
	}
	return errors.Join(errs...)
}

// Connected reports how many connections are joined as p.
func (h *Hub) Connected(p domain.PartnerID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byPartner[p])
}

// ServeHTTP upgrades the request and serves one connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logx.Err(err))
		return
	}

	c := &conn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.register(c)

	go h.writePump(c)
	go h.readPump(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		_ = c.ws.Close()
	}
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()

	if h.gauge != nil {
		h.gauge.Inc()
	}
	h.logger.Debug("websocket connected", logx.String("connection_id", c.id), logx.Int("connections", n))
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	if _, ok := h.conns[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c)
	h.unbindLocked(c)
	p := c.partner
	h.mu.Unlock()

	if h.gauge != nil {
		h.gauge.Dec()
	}
	h.logger.Debug("websocket disconnected",
		logx.String("connection_id", c.id),
		logx.Partner(p),
	)
}

func (h *Hub) bind(c *conn, p domain.PartnerID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unbindLocked(c)
	c.partner = p
	set := h.byPartner[p]
	if set == nil {
		set = make(map[*conn]struct{})
		h.byPartner[p] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unbindLocked(c *conn) {
	if c.partner == "" {
		return
	}
	if set := h.byPartner[c.partner]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byPartner, c.partner)
		}
	}
}

func (h *Hub) partnerOf(c *conn) domain.PartnerID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.partner
}

// writePump owns the connection: it closes the socket and unregisters on exit.
func (h *Hub) writePump(c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		h.unregister(c)
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Warn("websocket write failed", logx.String("connection_id", c.id), logx.Err(err))
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(c *conn) {
	defer close(c.done)

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.logger.Debug("websocket bad message", logx.String("connection_id", c.id), logx.Err(err))
			continue
		}
		h.handle(c, msg)
	}
}

func (h *Hub) handle(c *conn, msg ClientMessage) {
	switch msg.Type {
	case TypeJoin:
		if !msg.PartnerID.Valid() {
			return
		}
		h.bind(c, msg.PartnerID)
		h.logger.Info("partner joined",
			logx.Event("partner_joined"),
			logx.Partner(msg.PartnerID),
			logx.String("connection_id", c.id),
		)
		ack, _ := json.Marshal(Ack{Type: TypeJoined, PartnerID: msg.PartnerID, ConnectionID: c.id})
		select {
		case c.send <- ack:
		default:
		}
		h.touch(msg.PartnerID)
	case TypeHeartbeat:
		if p := h.partnerOf(c); p != "" {
			h.touch(p)
		}
	}
}

func (h *Hub) touch(p domain.PartnerID) {
	if h.heartbeat == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeDeadline)
	defer cancel()
	if _, err := h.heartbeat.Heartbeat(ctx, p); err != nil {
		h.logger.Warn("heartbeat not recorded", logx.Partner(p), logx.Err(err))
	}
}
