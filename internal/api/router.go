package api

import (
	"net/http"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/technosupport/ts-vms-es/internal/auth"
	"github.com/technosupport/ts-vms-es/internal/cameras"
	"github.com/technosupport/ts-vms-es/internal/metrics"
	"github.com/technosupport/ts-vms-es/internal/middleware"
	"github.com/technosupport/ts-vms-es/internal/tokens"
)

// RouterConfig wires the HTTP surface. Auth, Revocations, RateLimit and
// Idempotency are optional; a nil value turns the feature off.
type RouterConfig struct {
	Service        *cameras.Service
	Log            logs.Log
	Metrics        *metrics.Collector
	Auth           middleware.TokenValidator
	Revocations    auth.Revocations
	RateLimit      *middleware.RateLimitMiddleware
	Idempotency    *middleware.Idempotency
	AllowedOrigins []string
	RequestTimeout time.Duration
	Checks         map[string]Pinger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	cams := NewCameraHandler(cfg.Service)
	evs := NewEventHandler(cfg.Service)
	health := NewHealthHandler(cfg.Checks, cfg.Log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(chimiddleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(middleware.HTTPMetrics(cfg.Metrics))
	}
	// CORS must be before JWT auth to handle preflight OPTIONS
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health & Metrics
	r.Get("/healthz", health.Live)
	r.Get("/readyz", health.Ready)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
		r.Use(middleware.CorrelationID)
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit.GlobalLimiter)
		}
		if cfg.Auth != nil {
			r.Use(middleware.NewJWTAuth(cfg.Auth, cfg.Revocations, cfg.Log).Middleware)
		}
		scope := func(s string) func(http.Handler) http.Handler {
			if cfg.Auth == nil {
				return func(next http.Handler) http.Handler { return next }
			}
			return middleware.RequireScope(s)
		}

		r.Route("/cameras", func(r chi.Router) {
			r.With(scope(tokens.ScopeWrite)).Post("/", cams.Register)
			r.Route("/{id}", func(r chi.Router) {
				r.With(scope(tokens.ScopeRead)).Get("/", cams.Get)
				r.With(scope(tokens.ScopeWrite)).Put("/", cams.Update)
				r.With(scope(tokens.ScopeWrite)).Delete("/", cams.Decommission)
				r.With(scope(tokens.ScopeRead)).Get("/events", cams.History)

				r.Group(func(r chi.Router) {
					r.Use(scope(tokens.ScopeIngest))
					if cfg.Idempotency != nil {
						r.Use(cfg.Idempotency.Middleware)
					}
					r.Post("/events/motion-detected", evs.MotionDetected)
					r.Post("/events/stream-on", evs.StreamOn)
					r.Post("/events/stream-off", evs.StreamOff)
					r.Post("/events/alarm-on", evs.AlarmOn)
					r.Post("/events/alarm-off", evs.AlarmOff)
					r.Post("/events/config-changed", evs.ConfigChanged)
				})
			})
		})
	})

	return r
}
