package app

import (
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/http/handlers"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/realtime"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/duty"
	"courier-dispatch/internal/service/orders"
	"courier-dispatch/internal/transport/kafka"
	"courier-dispatch/internal/transport/natsbus"
)

func registerDomainServices(container *dig.Container) error {
	return provideAll(container,
		newDutyService,
		newCoordinator,
		newSweeper,
		func(c *dispatch.Coordinator) handlers.OrdersUsecase { return c },
		func(s *duty.Service) handlers.DutyUsecase { return s },
	)
}

func newDutyService(cfg *config.Config, store duty.Store, lister duty.OrderLister, clock clockwork.Clock, logger logx.Logger) *duty.Service {
	return duty.NewService(store, lister, cfg.Heartbeat.TTL, clock, logger)
}

type coordinatorIn struct {
	dig.In
	Config    *config.Config
	Orders    dispatch.OrderRepository
	Duty      *duty.Service
	Notifier  dispatch.Notifier
	Clock     clockwork.Clock
	Logger    logx.Logger
	Decisions *prometheus.CounterVec `name:"dispatch_decisions_total"`
}

func newCoordinator(in coordinatorIn) *dispatch.Coordinator {
	return dispatch.NewCoordinator(in.Orders, in.Duty, in.Notifier,
		dispatch.PolicyFromConfig(in.Config.Dispatch),
		dispatch.WithClock(in.Clock),
		dispatch.WithLogger(in.Logger),
		dispatch.WithDecisionsCounter(in.Decisions),
		dispatch.WithOperationTimeout(in.Config.Dispatch.OperationTimeout),
	)
}

type sweeperIn struct {
	dig.In
	Config      *config.Config
	Coordinator *dispatch.Coordinator
	Clock       clockwork.Clock
	Logger      logx.Logger
	Expired     prometheus.Counter `name:"dispatch_offers_expired_total"`
}

func newSweeper(in sweeperIn) *dispatch.Sweeper {
	return dispatch.NewSweeper(in.Coordinator, in.Config.Dispatch.SweepInterval, in.Clock, in.Logger, in.Expired)
}

func registerRealtime(container *dig.Container, natsConnect natsConnectFunc, relayInbound bool) error {
	notifierProvider := func(cfg *config.Config, hub *realtime.Hub, logger logx.Logger, res *closers) (dispatch.Notifier, error) {
		return newNotifier(cfg, hub, logger, res, natsConnect, relayInbound)
	}
	return provideAll(container,
		newHub,
		notifierProvider,
	)
}

type hubIn struct {
	dig.In
	Duty        *duty.Service
	Logger      logx.Logger
	Connections prometheus.Gauge `name:"realtime_connections"`
}

func newHub(in hubIn) *realtime.Hub {
	return realtime.NewHub(in.Duty, in.Logger, in.Connections)
}

// newNotifier picks the local hub, or NATS when a relay URL is configured.
// With NATS every instance publishes, and HTTP instances relay inbound events to their hub.
func newNotifier(
	cfg *config.Config,
	hub *realtime.Hub,
	logger logx.Logger,
	res *closers,
	natsConnect natsConnectFunc,
	relayInbound bool,
) (dispatch.Notifier, error) {
	if cfg.NATS.URL == "" {
		if !relayInbound {
			logger.Warn("worker without NATS: partner events stay in this process")
		}
		return hub, nil
	}

	nc, err := natsConnect(cfg.NATS.URL, logger)
	if err != nil {
		return nil, err
	}
	res.add("nats", func() error {
		nc.Close()
		return nil
	})
	if relayInbound {
		sub, err := natsbus.Subscribe(nc, cfg.NATS.SubjectPrefix, hub, logger)
		if err != nil {
			return nil, err
		}
		res.add("nats subscription", sub.Unsubscribe)
	}
	return natsbus.NewPublisher(nc, cfg.NATS.SubjectPrefix), nil
}

func registerIntake(container *dig.Container) error {
	return provideAll(container,
		func(c *dispatch.Coordinator, logger logx.Logger) *orders.Processor {
			return orders.NewProcessor(c, logger)
		},
		newKafkaConsumer,
	)
}

type kafkaIn struct {
	dig.In
	Config    *config.Config
	Logger    logx.Logger
	Processor *orders.Processor
	Closers   *closers
	Messages  *prometheus.CounterVec `name:"order_events_consumed_total"`
}

// newKafkaConsumer returns nil when Kafka is not configured.
func newKafkaConsumer(in kafkaIn) (*kafka.Consumer, error) {
	k := in.Config.Kafka
	consumer, err := kafka.NewConsumer(in.Logger, k.Brokers, k.GroupID, k.Topic,
		makeOrdersKafka(in.Processor, in.Config.Dispatch.OperationTimeout))
	if err != nil {
		return nil, err
	}
	if consumer == nil {
		return nil, nil
	}
	in.Closers.add("kafka", consumer.Close)
	return consumer.WithMessagesCounter(in.Messages), nil
}
