package app

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"courier-dispatch/internal/metrics"
)

type metricsOut struct {
	dig.Out

	RateLimitExceededTotal prometheus.Counter     `name:"rate_limit_exceeded_total"`
	OffersExpiredTotal     prometheus.Counter     `name:"dispatch_offers_expired_total"`
	DispatchDecisionsTotal *prometheus.CounterVec `name:"dispatch_decisions_total"`
	KafkaMessagesTotal     *prometheus.CounterVec `name:"order_events_consumed_total"`
	RealtimeConnections    prometheus.Gauge       `name:"realtime_connections"`
}

func registerMetrics(container *dig.Container) error {
	return provideAll(container, provideMetrics)
}

// provideMetrics registers service metrics with the default registerer.
// Collectors registered earlier are reused.
func provideMetrics() (metricsOut, error) {
	reg := prometheus.DefaultRegisterer
	var (
		out metricsOut
		err error
	)
	if out.RateLimitExceededTotal, err = register(reg, "rate_limit_exceeded_total", metrics.NewRateLimitExceededTotal()); err != nil {
		return metricsOut{}, err
	}
	if out.OffersExpiredTotal, err = register(reg, "dispatch_offers_expired_total", metrics.NewOffersExpiredTotal()); err != nil {
		return metricsOut{}, err
	}
	if out.DispatchDecisionsTotal, err = register(reg, "dispatch_decisions_total", metrics.NewDispatchDecisionsTotal()); err != nil {
		return metricsOut{}, err
	}
	if out.KafkaMessagesTotal, err = register(reg, "order_events_consumed_total", metrics.NewKafkaMessagesTotal()); err != nil {
		return metricsOut{}, err
	}
	if out.RealtimeConnections, err = register(reg, "realtime_connections", metrics.NewRealtimeConnections()); err != nil {
		return metricsOut{}, err
	}
	return out, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, name string, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("register %s: %w", name, err)
}
