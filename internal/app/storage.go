package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/repository"
	"courier-dispatch/internal/repository/memory"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/duty"
)

const (
	storePostgres = "postgres"
	storeRedis    = "redis"

	// dutyRetention bounds how long Redis keeps a silent partner's session.
	dutyRetention = 24 * time.Hour

	dbAttemptTimeout  = 3 * time.Second
	dbConnectMaxDelay = 10 * time.Second
)

var newPool = repository.NewPool

// connectPostgres waits for the database to come up. The pause between
// attempts doubles from delay up to dbConnectMaxDelay.
func connectPostgres(ctx context.Context, logger logx.Logger, dsn string, retries int, delay time.Duration) (*pgxpool.Pool, error) {
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, dbAttemptTimeout)
		pool, err := newPool(attemptCtx, dsn)
		cancel()
		if err == nil {
			logger.Info("db connected", logx.Int("attempt", attempt))
			return pool, nil
		}
		lastErr = err
		logger.Warn("db connect failed",
			logx.Int("attempt", attempt),
			logx.Int("retries", retries),
			logx.Duration("next_delay", delay),
			logx.Err(err),
		)
		if attempt == retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, dbConnectMaxDelay)
	}
	return nil, fmt.Errorf("db connect failed after %d attempts: %w", retries, lastErr)
}

func registerStorage(container *dig.Container, dbConnect dbConnectFunc, redisConnect redisConnectFunc) error {
	orderStoreProvider := func(ctx context.Context, cfg *config.Config, logger logx.Logger, res *closers) (dispatch.OrderRepository, error) {
		return newOrderStore(ctx, cfg, logger, res, dbConnect)
	}
	dutyStoreProvider := func(ctx context.Context, cfg *config.Config, logger logx.Logger, res *closers) (duty.Store, error) {
		return newDutyStore(ctx, cfg, logger, res, redisConnect)
	}
	return provideAll(container,
		orderStoreProvider,
		dutyStoreProvider,
		func(orders dispatch.OrderRepository) duty.OrderLister { return orders },
	)
}

func newOrderStore(
	ctx context.Context,
	cfg *config.Config,
	logger logx.Logger,
	res *closers,
	dbConnect dbConnectFunc,
) (dispatch.OrderRepository, error) {
	if cfg.Store.Orders != storePostgres {
		logger.Info("order store: memory")
		return memory.NewOrderStore(), nil
	}

	pool, err := dbConnect(ctx, logger, cfg.DB.DSN(), dbConnectRetries, dbConnectDelay)
	if err != nil {
		return nil, err
	}
	res.add("postgres", func() error {
		pool.Close()
		return nil
	})
	if err := repository.Migrate(ctx, pool); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("order store: postgres")
	return repository.NewOrderRepo(pool), nil
}

func newDutyStore(
	ctx context.Context,
	cfg *config.Config,
	logger logx.Logger,
	res *closers,
	redisConnect redisConnectFunc,
) (duty.Store, error) {
	if cfg.Store.Duty != storeRedis {
		logger.Info("duty store: memory")
		return memory.NewDutyStore(), nil
	}

	rdb, err := redisConnect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	res.add("redis", rdb.Close)
	logger.Info("duty store: redis", logx.String("addr", cfg.Redis.Addr))
	return repository.NewDutyRepo(rdb, dutyRetention), nil
}
