package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/booking-console/internal/config"
	httpmiddleware "github.com/wolfman30/booking-console/internal/http/middleware"
	"github.com/wolfman30/booking-console/internal/kv"
	"github.com/wolfman30/booking-console/internal/observability/metrics"
	"github.com/wolfman30/booking-console/internal/platform"
	"github.com/wolfman30/booking-console/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// KV is the selection store chosen by configuration. Client is nil for the
// memory backend.
type KV struct {
	Store  kv.Store
	Pinger kv.Pinger
	Client *redis.Client
}

// Close releases the redis connection if there is one.
func (k KV) Close() error {
	if k.Client == nil {
		return nil
	}
	return k.Client.Close()
}

// BuildKVStore returns the configured selection store. With the redis backend
// an unreachable server is an error unless allowFallback is set, in which case
// the memory store is used.
func BuildKVStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, allowFallback bool) (KV, error) {
	if cfg == nil {
		return KV{}, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.KVBackend == "memory" {
		logger.Info("selection store: memory")
		return KV{Store: kv.NewMemoryStore()}, nil
	}

	client := BuildRedisClient(ctx, cfg, logger, true)
	if client == nil {
		if allowFallback {
			logger.Warn("selection store: redis unavailable, using memory", "addr", cfg.RedisAddr)
			return KV{Store: kv.NewMemoryStore()}, nil
		}
		return KV{}, fmt.Errorf("bootstrap: redis unavailable at %q", cfg.RedisAddr)
	}
	store := kv.NewRedisStore(client)
	logger.Info("selection store: redis", "addr", cfg.RedisAddr, "tls", cfg.RedisTLS)
	return KV{Store: store, Pinger: store, Client: client}, nil
}

// BuildMetrics registers the console metrics on reg, or the default registry
// when reg is nil.
func BuildMetrics(reg prometheus.Registerer) *metrics.ConsoleMetrics {
	return metrics.NewConsoleMetrics(reg)
}

// BuildPlatformClient wires the chatbot platform REST client.
func BuildPlatformClient(cfg *appconfig.Config, m *metrics.ConsoleMetrics, logger *logging.Logger) (*platform.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if strings.TrimSpace(cfg.PlatformBaseURL) == "" {
		return nil, fmt.Errorf("bootstrap: PLATFORM_BASE_URL is required")
	}
	var opts []platform.Option
	if m != nil {
		opts = append(opts, platform.WithObserver(m))
	}
	return platform.NewClient(platform.Config{
		BaseURL:    cfg.PlatformBaseURL,
		Token:      cfg.PlatformAPIToken,
		Timeout:    cfg.PlatformTimeout,
		RetryCount: cfg.PlatformRetryCount,
	}, logger, opts...), nil
}

// BuildRateLimiter returns the per-account limiter, or nil when disabled.
func BuildRateLimiter(cfg *appconfig.Config) *httpmiddleware.RateLimiter {
	if cfg == nil || cfg.RateLimitRPS <= 0 {
		return nil
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = int(cfg.RateLimitRPS)
		if burst < 1 {
			burst = 1
		}
	}
	return httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, burst)
}
