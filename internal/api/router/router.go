package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/booking-console/internal/console"
	httpmiddleware "github.com/wolfman30/booking-console/internal/http/middleware"
	"github.com/wolfman30/booking-console/internal/kv"
	"github.com/wolfman30/booking-console/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Console            *console.Handler
	Auth               httpmiddleware.OperatorAuthConfig
	RateLimiter        *httpmiddleware.RateLimiter
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Health pings the selection store when it is remote.
	Health kv.Pinger
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.Health))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	if cfg.Console != nil {
		r.Route("/console", func(c chi.Router) {
			c.Use(httpmiddleware.OperatorAuth(cfg.Auth))
			c.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
			c.Mount("/", cfg.Console.Routes())
		})
	}

	return r
}

func healthHandler(p kv.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded","kv":"unreachable"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
