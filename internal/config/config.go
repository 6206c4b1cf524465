package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Port     string `yaml:"port"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	// Chatbot platform REST API
	PlatformBaseURL    string        `yaml:"platform_base_url"`
	PlatformAPIToken   string        `yaml:"platform_api_token"`
	PlatformTimeout    time.Duration `yaml:"platform_timeout"`
	PlatformRetryCount int           `yaml:"platform_retry_count"`

	// Durable selection storage: "redis" or "memory"
	KVBackend     string `yaml:"kv_backend"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisTLS      bool   `yaml:"redis_tls"`

	// Operator auth
	OperatorJWTSecret  string   `yaml:"operator_jwt_secret"`
	AllowAccountHeader bool     `yaml:"allow_account_header"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	// Per-account request limit on /console; 0 disables it
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	BannerTTL              time.Duration `yaml:"banner_ttl"`
	IntegrationToggleDelay time.Duration `yaml:"integration_toggle_delay"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		Port:                   "8080",
		Env:                    "development",
		LogLevel:               "info",
		PlatformTimeout:        15 * time.Second,
		PlatformRetryCount:     2,
		KVBackend:              "redis",
		RedisAddr:              "redis:6379",
		BannerTTL:              3 * time.Second,
		IntegrationToggleDelay: time.Second,
		RateLimitRPS:           20,
		RateLimitBurst:         40,
	}
}

// Load reads configuration with the precedence defaults < YAML file < environment.
// The YAML file is taken from CONSOLE_CONFIG_FILE and is optional.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONSOLE_CONFIG_FILE"))
}

// LoadFrom is Load with an explicit YAML path. An empty or missing path is not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()
	if err := loadYAML(cfg, path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	overlayEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail much later at runtime.
func (c *Config) Validate() error {
	switch c.KVBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown KV_BACKEND %q", c.KVBackend)
	}
	if c.BannerTTL <= 0 {
		return errors.New("BANNER_TTL must be positive")
	}
	if c.IntegrationToggleDelay < 0 {
		return errors.New("INTEGRATION_TOGGLE_DELAY must not be negative")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if c.PlatformRetryCount < 0 {
		return errors.New("PLATFORM_RETRY_COUNT must not be negative")
	}
	return nil
}

// IsProduction reports whether the console runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func loadYAML(cfg *Config, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func overlayEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.PlatformBaseURL = strings.TrimRight(getEnv("PLATFORM_BASE_URL", cfg.PlatformBaseURL), "/")
	cfg.PlatformAPIToken = getEnv("PLATFORM_API_TOKEN", cfg.PlatformAPIToken)
	cfg.PlatformTimeout = getEnvAsDuration("PLATFORM_TIMEOUT", cfg.PlatformTimeout)
	cfg.PlatformRetryCount = getEnvAsInt("PLATFORM_RETRY_COUNT", cfg.PlatformRetryCount)
	cfg.KVBackend = strings.ToLower(strings.TrimSpace(getEnv("KV_BACKEND", cfg.KVBackend)))
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisTLS = getEnvAsBool("REDIS_TLS", cfg.RedisTLS)
	cfg.OperatorJWTSecret = getEnv("OPERATOR_JWT_SECRET", cfg.OperatorJWTSecret)
	cfg.AllowAccountHeader = getEnvAsBool("ALLOW_ACCOUNT_HEADER", cfg.AllowAccountHeader)
	cfg.CORSAllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)
	cfg.RateLimitRPS = getEnvAsFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = getEnvAsInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.BannerTTL = getEnvAsDuration("BANNER_TTL", cfg.BannerTTL)
	cfg.IntegrationToggleDelay = getEnvAsDuration("INTEGRATION_TOGGLE_DELAY", cfg.IntegrationToggleDelay)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
