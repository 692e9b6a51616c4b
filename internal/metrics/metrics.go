package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewRateLimitExceededTotal returns a Prometheus counter for the number of rejected HTTP requests due to rate limiting
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// NewGatewayRetriesTotal returns a Prometheus counter for the number of retry attempts performed by gateways
func NewGatewayRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_retries_total",
		Help: "Total number of retry attempts performed by gateways",
	})
}

// NewDispatchDecisionsTotal returns a counter of coordinator decisions by kind and outcome
func NewDispatchDecisionsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_decisions_total",
		Help: "Total number of accept/reject/timeout decisions handled by the dispatch coordinator",
	}, []string{"decision", "outcome"})
}

// NewOffersExpiredTotal returns a counter of offers auto-rejected by the server-side sweeper
func NewOffersExpiredTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_expired_total",
		Help: "Total number of offers auto-rejected after their decision window elapsed",
	})
}

// NewRealtimeConnections returns a gauge of open real-time channel connections
func NewRealtimeConnections() prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Number of open real-time channel connections",
	})
}

// NewKafkaMessagesTotal returns a counter of consumed upstream order events by result
func NewKafkaMessagesTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_events_consumed_total",
		Help: "Total number of consumed upstream order events by result",
	}, []string{"result"})
}
