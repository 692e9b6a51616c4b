// Package natsbus relays partner events between dispatch instances over NATS.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// Sink receives relayed events, usually the local realtime hub.
type Sink interface {
	Notify(ctx context.Context, to domain.PartnerID, ev domain.Event) error
}

type publishConn interface {
	Publish(subject string, data []byte) error
}

// Connect dials NATS with unlimited reconnects.
func Connect(url string, logger logx.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = logx.Nop()
	}
	nc, err := nats.Connect(url,
		nats.Name("courier-dispatch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", logx.Err(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", logx.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Error("nats error", logx.Err(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Subject returns the subject carrying events for p.
func Subject(prefix string, p domain.PartnerID) (string, error) {
	id := string(p)
	if !p.Valid() || strings.ContainsAny(id, " \t\r\n*>") {
		return "", fmt.Errorf("%w: partner id %q cannot form a subject", apperr.ErrInvalid, p)
	}
	return partnerRoot(prefix) + id, nil
}

// PartnerFromSubject is the inverse of Subject.
func PartnerFromSubject(prefix, subject string) (domain.PartnerID, bool) {
	root := partnerRoot(prefix)
	if !strings.HasPrefix(subject, root) || len(subject) == len(root) {
		return "", false
	}
	return domain.PartnerID(strings.TrimPrefix(subject, root)), true
}

func partnerRoot(prefix string) string {
	return strings.TrimSuffix(prefix, ".") + ".partner."
}

// Publisher sends partner events to NATS instead of a local hub.
type Publisher struct {
	conn   publishConn
	prefix string
}

// NewPublisher creates a Publisher.
func NewPublisher(conn publishConn, prefix string) *Publisher {
	return &Publisher{conn: conn, prefix: prefix}
}

// Notify publishes ev on the subject of to.
func (p *Publisher) Notify(_ context.Context, to domain.PartnerID, ev domain.Event) error {
	subject, err := Subject(p.prefix, to)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("%w: nats publish: %v", apperr.ErrTransient, err)
	}
	return nil
}

// Subscribe forwards every relayed partner event to sink.
func Subscribe(nc *nats.Conn, prefix string, sink Sink, logger logx.Logger) (*nats.Subscription, error) {
	if logger == nil {
		logger = logx.Nop()
	}
	sub, err := nc.Subscribe(partnerRoot(prefix)+">", relay(prefix, sink, logger))
	if err != nil {
		return nil, fmt.Errorf("subscribe partner events: %w", err)
	}
	logger.Info("nats relay subscribed", logx.String("subject", sub.Subject))
	return sub, nil
}

func relay(prefix string, sink Sink, logger logx.Logger) nats.MsgHandler {
	return func(msg *nats.Msg) {
		p, ok := PartnerFromSubject(prefix, msg.Subject)
		if !ok {
			logger.Warn("nats relay unexpected subject", logx.String("subject", msg.Subject))
			return
		}
		var ev domain.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logger.Warn("nats relay bad payload", logx.Partner(p), logx.Err(err))
			return
		}
		if err := sink.Notify(context.Background(), p, ev); err != nil {
			logger.Warn("nats relay delivery failed", logx.Partner(p), logx.Err(err))
		}
	}
}
