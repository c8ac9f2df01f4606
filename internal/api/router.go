// Package api provides the local HTTP API of the admin console.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/classroomapp/adminconsole/internal/api/handler"
	"github.com/classroomapp/adminconsole/internal/api/middleware"
	"github.com/classroomapp/adminconsole/internal/api/response"
	"github.com/classroomapp/adminconsole/internal/resilience"
)

// DefaultServiceName names the console in traces when none is configured.
const DefaultServiceName = "classroom-admin-console"

// Dashboard is the poller as used by the router's handlers.
type Dashboard interface {
	handler.DashboardService
	handler.PollerState
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	Dashboard   Dashboard
	Registry    *resilience.Registry
	Location    *time.Location

	// Gatherer backs GET /metrics. The route is not mounted when nil.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new chi router with all console routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger, "/v1/ops/health", "/v1/ops/ready", "/metrics"))
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, r, r.Method+" is not supported on "+r.URL.Path)
	})

	var poller handler.PollerState
	if cfg.Dashboard != nil {
		poller = cfg.Dashboard
	}
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, poller)

	actionRateLimit := middleware.RateLimitByIP(middleware.ActionRateLimit) // 10 req/min
	readRateLimit := middleware.RateLimitByIP(middleware.ReadRateLimit)     // 120 req/min

	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{
			ErrorLog: zerologPrinter{cfg.Logger},
		}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		if cfg.Dashboard == nil {
			return
		}
		dashboardHandler := handler.NewDashboardHandler(cfg.Dashboard, cfg.Location)

		r.Route("/dashboard", func(r chi.Router) {
			r.With(readRateLimit).Get("/", dashboardHandler.GetDashboard)
			r.With(readRateLimit).Get("/snapshot", dashboardHandler.GetSnapshot)

			// Manual actions reach the admin backend on demand.
			r.Group(func(r chi.Router) {
				r.Use(actionRateLimit)
				r.Use(middleware.RequireJSON)
				r.Post("/refresh", dashboardHandler.Refresh)
				r.Post("/health-check", dashboardHandler.HealthCheck)
			})
		})
	})

	return r
}

// zerologPrinter adapts a zerolog.Logger to promhttp's ErrorLog.
type zerologPrinter struct {
	log zerolog.Logger
}

func (p zerologPrinter) Println(v ...interface{}) {
	p.log.Error().Interface("error", v).Msg("metrics exposition failed")
}
