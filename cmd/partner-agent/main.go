// Command partner-agent keeps one partner on duty and answers offers with a fixed decision.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	dto "github.com/prometheus/client_model/go"

	"courier-dispatch/internal/app"
	"courier-dispatch/internal/config"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/partner"
)

const (
	requestTimeout = 10 * time.Second
	offDutyTimeout = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("partner agent failed", logx.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger logx.Logger) error {
	ac := cfg.Agent
	decision, err := partner.ParseDecision(ac.Decision)
	if err != nil {
		return err
	}
	id := domain.PartnerID(strings.TrimSpace(ac.Partner))

	api, err := partner.NewAPI(ac.ServerURL, id, &http.Client{Timeout: requestTimeout})
	if err != nil {
		return err
	}
	wsURL, err := partner.WebsocketURL(ac.ServerURL)
	if err != nil {
		return err
	}

	clock := clockwork.NewRealClock()
	logger = logger.With(logx.Partner(id))
	retries := metrics.NewGatewayRetriesTotal()
	server := partner.NewRetryingServer(api, logger, retries, partner.RetryConfig{
		MaxAttempts: ac.MaxAttempts,
		BaseDelay:   ac.BaseDelay,
		MaxDelay:    ac.MaxDelay,
	}, clock)

	session := partner.NewSession(wsURL, id,
		partner.WithSessionClock(clock),
		partner.WithSessionLogger(logger),
		partner.WithHeartbeatEvery(cfg.Heartbeat.Interval),
	)
	agent := partner.NewAgent(id, server,
		partner.WithAgentClock(clock),
		partner.WithAgentLogger(logger),
		partner.WithOfferWindow(cfg.Dispatch.OfferWindow),
		partner.WithDecision(decision),
	)
	unsubscribe := agent.Subscribe(logNotice(logger))
	defer unsubscribe()
	detach := agent.Attach(ctx, session)
	defer detach()

	if _, err := server.SetDuty(ctx, true); err != nil {
		return fmt.Errorf("go on duty: %w", err)
	}
	logger.Info("partner agent on duty",
		logx.String("server", ac.ServerURL),
		logx.String("decision", string(decision)),
	)

	runErr := session.Run(ctx)
	goOffDuty(server, logger)
	logger.Info("partner agent stopped", logx.Int("api_retries", int(counterValue(retries))))
	if runErr != nil {
		return runErr
	}
	return ctx.Err()
}

// goOffDuty is best effort: the server refuses while an order is still confirmed to us.
func goOffDuty(server partner.Server, logger logx.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), offDutyTimeout)
	defer cancel()
	if _, err := server.SetDuty(ctx, false); err != nil {
		logger.Warn("going off duty failed", logx.Err(err))
	}
}

func logNotice(logger logx.Logger) func(partner.Notice) {
	return func(n partner.Notice) {
		fields := []logx.Field{logx.String("kind", string(n.Kind))}
		if n.OrderID != "" {
			fields = append(fields, logx.OrderID(n.OrderID))
		}
		if n.Reason != "" {
			fields = append(fields, logx.String("reason", string(n.Reason)))
		}
		if n.Offer != nil {
			fields = append(fields, logx.Time("deadline", n.Offer.Deadline))
		}
		if n.Message != "" {
			fields = append(fields, logx.String("message", n.Message))
		}
		logger.Info("agent notice", fields...)
	}
}

func counterValue(c interface{ Write(*dto.Metric) error }) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
