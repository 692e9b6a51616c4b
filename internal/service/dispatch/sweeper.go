package dispatch

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"courier-dispatch/internal/logx"
)

type offerExpirer interface {
	ExpireOffers(ctx context.Context) (int, error)
}

// Sweeper periodically auto-rejects offers whose holders went silent.
type Sweeper struct {
	expirer  offerExpirer
	interval time.Duration
	clock    clockwork.Clock
	logger   logx.Logger
	expired  prometheus.Counter
}

// NewSweeper creates a Sweeper. A nil counter disables the metric.
func NewSweeper(e offerExpirer, interval time.Duration, clock clockwork.Clock, logger logx.Logger, expired prometheus.Counter) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = logx.Nop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Sweeper{expirer: e, interval: interval, clock: clock, logger: logger, expired: expired}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("offer sweeper started", logx.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass.
func (s *Sweeper) Sweep(ctx context.Context) int {
	n, err := s.expirer.ExpireOffers(ctx)
	if err != nil {
		s.logger.Warn("offer sweep incomplete", logx.Err(err))
	}
	if n > 0 {
		if s.expired != nil {
			s.expired.Add(float64(n))
		}
		s.logger.Debug("offers expired", logx.Int("count", n))
	}
	return n
}
