package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/orders"
)

// HandleFunc processes a single orders.Event from Kafka
type HandleFunc func(context.Context, orders.Event) error

var newConsumerGroup = sarama.NewConsumerGroup

// Consumer wraps a Sarama consumer group and dispatches events to a handler
type Consumer struct {
	group    sarama.ConsumerGroup
	topic    string
	handler  HandleFunc
	logger   logx.Logger
	messages *prometheus.CounterVec
	backoff  time.Duration
}

// NewConsumer creates a new Kafka consumer. It returns nil when Kafka is not configured.
func NewConsumer(logger logx.Logger, brokers []string, groupID, topic string, h HandleFunc) (*Consumer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" || strings.TrimSpace(groupID) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logx.Nop()
	}

	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := newConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:   group,
		topic:   topic,
		handler: h,
		logger:  logger.With(logx.String("topic", topic)),
		backoff: time.Second,
	}, nil
}

// WithMessagesCounter counts consumed messages by result.
func (c *Consumer) WithMessagesCounter(v *prometheus.CounterVec) *Consumer {
	if c != nil {
		c.messages = v
	}
	return c
}

// Run starts the consumer
func (c *Consumer) Run(ctx context.Context) error {
	if c == nil {
		return nil
	}

	h := &groupHandler{c: c}
	c.logger.Info("kafka consumer started")

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("kafka consume error", logx.Err(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff):
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close releases the consumer group.
func (c *Consumer) Close() error {
	if c == nil {
		return nil
	}
	return c.group.Close()
}

func (c *Consumer) count(result string) {
	if c.messages != nil {
		c.messages.WithLabelValues(result).Inc()
	}
}

type groupHandler struct{ c *Consumer }

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		ev, err := decodeEvent(msg.Value)
		if err != nil {
			h.c.logger.Warn("kafka invalid message",
				logx.Int("partition", int(msg.Partition)),
				logx.Any("offset", msg.Offset),
				logx.Err(err),
			)
			h.c.count("invalid")
			sess.MarkMessage(msg, "")
			continue
		}

		if err := h.c.handler(sess.Context(), ev); err != nil {
			if !skippable(err) {
				h.c.logger.Error("kafka handle failed, retry",
					logx.OrderID(ev.OrderID),
					logx.String("status", ev.Status),
					logx.Err(err),
				)
				h.c.count("retry")
				return err
			}
			h.c.logger.Warn("kafka handle failed, skipping message",
				logx.OrderID(ev.OrderID),
				logx.String("status", ev.Status),
				logx.Err(err),
			)
			h.c.count("skipped")
			sess.MarkMessage(msg, "")
			continue
		}

		h.c.count("ok")
		sess.MarkMessage(msg, "")
	}
	return nil
}

// skippable reports whether redelivering the message could never succeed.
func skippable(err error) bool {
	var perm PermanentError
	return errors.As(err, &perm) ||
		errors.Is(err, apperr.ErrInvalid) ||
		errors.Is(err, apperr.ErrForbidden)
}
