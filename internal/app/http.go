package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/http/handlers"
	"courier-dispatch/internal/http/middleware/ratelimit"
	"courier-dispatch/internal/http/pprofserver"
	"courier-dispatch/internal/http/router"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/realtime"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 15 * time.Second
	idleTimeout       = 60 * time.Second
)

func registerHTTP(container *dig.Container) error {
	return provideAll(container,
		handlers.New,
		handlers.NewOrderHandler,
		handlers.NewDutyHandler,
		newRateLimiter,
		newRateLimitMiddleware,
		newRouter,
		newHTTPServer,
		func(cfg *config.Config, logger logx.Logger) *pprofserver.Server {
			return pprofserver.New(cfg.Pprof, logger)
		},
	)
}

// newRateLimiter keys buckets by partner header or client IP.
// Misconfigured limits fail the build instead of silently allowing everything.
func newRateLimiter(cfg *config.Config, clock clockwork.Clock, logger logx.Logger) (ratelimit.Limiter, error) {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return ratelimit.NopLimiter{}, nil
	}
	if rl.Rate <= 0 || rl.Burst <= 0 {
		return nil, fmt.Errorf("rate limit: rate %.2f and burst %d must be positive", rl.Rate, rl.Burst)
	}
	logger.Info("rate limit enabled",
		logx.Any("rate", rl.Rate),
		logx.Int("burst", rl.Burst),
		logx.Int("max_buckets", rl.MaxBuckets),
	)
	return ratelimit.NewKeyedLimiter(clock, ratelimit.Config{
		Rate:       rl.Rate,
		Burst:      rl.Burst,
		TTL:        rl.TTL,
		MaxBuckets: rl.MaxBuckets,
	}), nil
}

type rateLimitIn struct {
	dig.In
	Logger   logx.Logger
	Exceeded prometheus.Counter `name:"rate_limit_exceeded_total"`
	Limiter  ratelimit.Limiter
}

func newRateLimitMiddleware(in rateLimitIn) *ratelimit.Middleware {
	return ratelimit.New(in.Logger, in.Exceeded, in.Limiter)
}

type routerIn struct {
	dig.In
	Config    *config.Config
	Logger    logx.Logger
	Base      *handlers.Handlers
	Orders    *handlers.OrderHandler
	Duty      *handlers.DutyHandler
	Hub       *realtime.Hub
	RateLimit *ratelimit.Middleware
}

func newRouter(in routerIn) http.Handler {
	return router.New(router.Deps{
		Logger:         in.Logger,
		Base:           in.Base,
		Orders:         in.Orders,
		Duty:           in.Duty,
		Realtime:       in.Hub,
		RateLimit:      in.RateLimit,
		AllowedOrigins: in.Config.CORS.AllowedOrigins,
	})
}

func newHTTPServer(cfg *config.Config, mux http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
