package partner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

const (
	// DefaultHeartbeatEvery keeps the server-side duty session (15m TTL) alive.
	DefaultHeartbeatEvery = 12 * time.Minute

	// DefaultReadWait covers two server pings (25s apart) plus slack.
	DefaultReadWait = 60 * time.Second

	writeWait        = 5 * time.Second
	handshakeTimeout = 10 * time.Second
)

type channelMessage struct {
	Type      string           `json:"type"`
	PartnerID domain.PartnerID `json:"partner_id,omitempty"`
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionClock sets the clock driving heartbeats and reconnect backoff.
func WithSessionClock(c clockwork.Clock) SessionOption {
	return func(s *Session) { s.clock = c }
}

// WithSessionLogger sets the logger.
func WithSessionLogger(l logx.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithHeartbeatEvery sets the heartbeat period.
func WithHeartbeatEvery(d time.Duration) SessionOption {
	return func(s *Session) { s.heartbeatEvery = d }
}

// WithReadWait sets how long the channel may stay silent, pings included,
// before the connection is dropped and redialed.
func WithReadWait(d time.Duration) SessionOption {
	return func(s *Session) { s.readWait = d }
}

// WithReconnectBackoff bounds the delay between reconnect attempts.
func WithReconnectBackoff(min, max time.Duration) SessionOption {
	return func(s *Session) { s.minBackoff, s.maxBackoff = min, max }
}

// Session is one partner's reconnecting real-time channel. It re-joins on every
// connect and tells OnJoin subscribers so they can re-synchronize.
type Session struct {
	url     string
	partner domain.PartnerID
	dialer  *websocket.Dialer

	clock          clockwork.Clock
	logger         logx.Logger
	heartbeatEvery time.Duration
	readWait       time.Duration
	minBackoff     time.Duration
	maxBackoff     time.Duration

	mu       sync.Mutex
	nextID   uint64
	events   map[uint64]func(domain.Event)
	joins    map[uint64]func(context.Context)
	joined   bool
	connects int
}

// NewSession creates a Session for partner against the websocket endpoint wsURL.
func NewSession(wsURL string, partner domain.PartnerID, opts ...SessionOption) *Session {
	s := &Session{
		url:            wsURL,
		partner:        partner,
		dialer:         &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment},
		clock:          clockwork.NewRealClock(),
		logger:         logx.Nop(),
		heartbeatEvery: DefaultHeartbeatEvery,
		readWait:       DefaultReadWait,
		minBackoff:     500 * time.Millisecond,
		maxBackoff:     30 * time.Second,
		events:         make(map[uint64]func(domain.Event)),
		joins:          make(map[uint64]func(context.Context)),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// WebsocketURL derives the channel endpoint from the REST base URL.
func WebsocketURL(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}

// Subscribe registers fn for every event. Call the returned func to stop.
func (s *Session) Subscribe(fn func(domain.Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.events[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.events, id)
	}
}

// OnJoin registers fn to run after each acknowledged join, reconnects included.
func (s *Session) OnJoin(fn func(ctx context.Context)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.joins[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.joins, id)
	}
}

// Joined reports whether the current connection has been acknowledged.
func (s *Session) Joined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined
}

// Connects counts acknowledged joins since the session started.
func (s *Session) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// Run keeps the channel connected until ctx is done. Disconnects are not errors.
func (s *Session) Run(ctx context.Context) error {
	delay := s.minBackoff
	for {
		joined, err := s.serve(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if joined {
			delay = s.minBackoff
		}
		s.logger.Warn("realtime disconnected",
			logx.Partner(s.partner),
			logx.Duration("retry_in", delay),
			logx.Err(err),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(delay):
		}
		delay *= 2
		if delay > s.maxBackoff {
			delay = s.maxBackoff
		}
	}
}

// serve runs one connection and reports whether it got as far as a join ack.
func (s *Session) serve(ctx context.Context) (bool, error) {
	header := http.Header{}
	header.Set(PartnerHeader, string(s.partner))
	ws, _, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}

	connCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		_ = ws.Close()
		wg.Wait()
		s.setJoined(false)
	}()

	var writeMu sync.Mutex
	write := func(m channelMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		return ws.WriteJSON(m)
	}

	_ = ws.SetReadDeadline(time.Now().Add(s.readWait))
	ws.SetPingHandler(func(data string) error {
		_ = ws.SetReadDeadline(time.Now().Add(s.readWait))
		writeMu.Lock()
		defer writeMu.Unlock()
		err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	if err := write(channelMessage{Type: "join", PartnerID: s.partner}); err != nil {
		return false, fmt.Errorf("join: %w", err)
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		<-connCtx.Done()
		_ = ws.Close()
	}()
	go func() {
		defer wg.Done()
		s.heartbeats(connCtx, write)
	}()

	joined := false
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return joined, err
		}
		_ = ws.SetReadDeadline(time.Now().Add(s.readWait))
		var head channelMessage
		if err := json.Unmarshal(raw, &head); err != nil {
			s.logger.Debug("realtime bad frame", logx.Err(err))
			continue
		}
		if head.Type == "joined" {
			joined = true
			s.afterJoin(connCtx)
			continue
		}
		var ev domain.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.logger.Debug("realtime bad event", logx.String("type", head.Type), logx.Err(err))
			continue
		}
		s.dispatch(ev)
	}
}

func (s *Session) heartbeats(ctx context.Context, write func(channelMessage) error) {
	t := s.clock.NewTicker(s.heartbeatEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			if err := write(channelMessage{Type: "heartbeat"}); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					s.logger.Debug("realtime heartbeat failed", logx.Err(err))
				}
				return
			}
		}
	}
}

func (s *Session) afterJoin(ctx context.Context) {
	s.mu.Lock()
	s.joined = true
	s.connects++
	hooks := make([]func(context.Context), 0, len(s.joins))
	for _, fn := range s.joins {
		hooks = append(hooks, fn)
	}
	s.mu.Unlock()

	s.logger.Info("realtime joined", logx.Partner(s.partner))
	for _, fn := range hooks {
		go fn(ctx)
	}
}

func (s *Session) dispatch(ev domain.Event) {
	s.mu.Lock()
	subs := make([]func(domain.Event), 0, len(s.events))
	for _, fn := range s.events {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

func (s *Session) setJoined(v bool) {
	s.mu.Lock()
	s.joined = v
	s.mu.Unlock()
}
