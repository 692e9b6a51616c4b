package partner

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// RetryConfig describes RetryingServer backoff.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryingServer retries transient failures. Status updates are safe to repeat
// because the server treats a repeated decision as a duplicate.
type RetryingServer struct {
	next    Server
	logger  logx.Logger
	retries counter
	cfg     RetryConfig
	clock   clockwork.Clock
}

// NewRetryingServer returns nil when next is nil.
func NewRetryingServer(next Server, logger logx.Logger, retries counter, cfg RetryConfig, clock clockwork.Clock) *RetryingServer {
	if next == nil {
		return nil
	}
	if logger == nil {
		logger = logx.Nop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &RetryingServer{next: next, logger: logger, retries: retries, cfg: cfg, clock: clock}
}

// ActiveOrders implements Server.
func (s *RetryingServer) ActiveOrders(ctx context.Context) ([]domain.Order, error) {
	return retry(ctx, s, "ActiveOrders", s.next.ActiveOrders)
}

// PendingLiveOrders implements Server.
func (s *RetryingServer) PendingLiveOrders(ctx context.Context) ([]domain.Order, error) {
	return retry(ctx, s, "PendingLiveOrders", s.next.PendingLiveOrders)
}

// UpdateStatus implements Server. Every attempt carries the same request id.
func (s *RetryingServer) UpdateStatus(ctx context.Context, orderID string, status domain.Status, requestID string) (domain.DecisionResult, error) {
	return retry(ctx, s, "UpdateStatus", func(ctx context.Context) (domain.DecisionResult, error) {
		return s.next.UpdateStatus(ctx, orderID, status, requestID)
	})
}

// SetDuty implements Server.
func (s *RetryingServer) SetDuty(ctx context.Context, on bool) (domain.DutySession, error) {
	return retry(ctx, s, "SetDuty", func(ctx context.Context) (domain.DutySession, error) {
		return s.next.SetDuty(ctx, on)
	})
}

// Heartbeat implements Server.
func (s *RetryingServer) Heartbeat(ctx context.Context) (domain.DutySession, error) {
	return retry(ctx, s, "Heartbeat", s.next.Heartbeat)
}

func retry[T any](ctx context.Context, s *RetryingServer, method string, call func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		v, err := call(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == s.cfg.MaxAttempts || !apperr.IsRetryable(err) {
			break
		}

		delay := backoff(s.cfg.BaseDelay, s.cfg.MaxDelay, attempt)
		if s.retries != nil {
			s.retries.Inc()
		}
		s.logger.Warn("dispatch api retry",
			logx.String("method", method),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
		if !sleepWithContext(ctx, s.clock, delay) {
			break
		}
	}
	return zero, lastErr
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max || d < 0 {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.Chan():
		return true
	}
}
