package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"courier-dispatch/internal/http/handlers"
	appmw "courier-dispatch/internal/http/middleware"
	"courier-dispatch/internal/http/middleware/ratelimit"
	"courier-dispatch/internal/logx"
)

const requestTimeout = 5 * time.Second

// Deps groups everything the router mounts.
type Deps struct {
	Logger         logx.Logger
	Base           *handlers.Handlers
	Orders         *handlers.OrderHandler
	Duty           *handlers.DutyHandler
	Realtime       http.Handler
	RateLimit      *ratelimit.Middleware
	AllowedOrigins []string
}

// New constructs a chi-based http.Handler with base middleware and routes.
func New(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = logx.Nop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appmw.Observability(logger))
	r.Use(middleware.Recoverer)
	r.Use(corsHandler(d.AllowedOrigins))

	r.Get("/ping", d.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(d.Base.HealthcheckHead))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The websocket upgrade outlives any request timeout.
	if d.Realtime != nil {
		r.Method(http.MethodGet, "/ws", d.Realtime)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		if d.RateLimit != nil {
			r.Use(d.RateLimit.Handler())
		}

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", d.Orders.Create)
			r.Get("/active/{partner}", d.Orders.Active)
			r.Get("/pending/live", d.Orders.PendingLive)
			r.Get("/{id}", d.Orders.Get)
			r.Post("/{id}/cancel", d.Orders.Cancel)
			r.Patch("/{id}/status", d.Orders.UpdateStatus)
		})

		r.Route("/duty-status", func(r chi.Router) {
			r.Post("/update", d.Duty.Update)
			r.Post("/heartbeat", d.Duty.Heartbeat)
			r.Get("/{partner}", d.Duty.Get)
		})
	})

	r.NotFound(http.HandlerFunc(d.Base.NotFound))
	r.MethodNotAllowed(http.HandlerFunc(d.Base.MethodNotAllowed))

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodHead, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", ratelimit.PartnerHeader, middleware.RequestIDHeader},
		ExposedHeaders: []string{"Location", "Retry-After"},
		MaxAge:         300,
	})
	return c.Handler
}
