package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wolfman30/booking-console/internal/api/router"
	"github.com/wolfman30/booking-console/internal/app/bootstrap"
	appconfig "github.com/wolfman30/booking-console/internal/config"
	"github.com/wolfman30/booking-console/internal/console"
	httpmiddleware "github.com/wolfman30/booking-console/internal/http/middleware"
	"github.com/wolfman30/booking-console/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfg, err := appconfig.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking console",
		"env", cfg.Env,
		"port", cfg.Port,
		"kv_backend", cfg.KVBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler, cleanup, err := setup(ctx, cfg, prometheus.NewRegistry(), logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays unset: /console/events is a long-lived websocket.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// setup wires every dependency and returns the root handler plus a cleanup
// func that releases them.
func setup(ctx context.Context, cfg *appconfig.Config, reg *prometheus.Registry, logger *logging.Logger) (http.Handler, func(), error) {
	store, err := bootstrap.BuildKVStore(ctx, cfg, logger, !cfg.IsProduction())
	if err != nil {
		return nil, nil, err
	}

	m := bootstrap.BuildMetrics(reg)
	client, err := bootstrap.BuildPlatformClient(cfg, m, logger.WithComponent("platform"))
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	registry := console.NewRegistry(console.Deps{
		Platform:    client,
		KV:          store.Store,
		Metrics:     m,
		Gatherer:    reg,
		BannerTTL:   cfg.BannerTTL,
		ToggleDelay: cfg.IntegrationToggleDelay,
		Logger:      logger,
	}, console.WithLoadTimeout(cfg.PlatformTimeout*time.Duration(cfg.PlatformRetryCount+1)))

	limiter := bootstrap.BuildRateLimiter(cfg)
	if limiter != nil {
		go limiter.Run(ctx, 5*time.Minute, 10*time.Minute)
	}

	handler := router.New(&router.Config{
		Logger:  logger,
		Console: console.NewHandler(registry, logger.WithComponent("console")),
		Auth: httpmiddleware.OperatorAuthConfig{
			Secret:             cfg.OperatorJWTSecret,
			AllowAccountHeader: cfg.AllowAccountHeader,
		},
		RateLimiter:        limiter,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Health:             store.Pinger,
	})

	cleanup := func() {
		registry.Close()
		if err := store.Close(); err != nil {
			logger.Warn("close selection store", "error", err)
		}
	}
	return handler, cleanup, nil
}
