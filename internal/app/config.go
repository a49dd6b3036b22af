package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (SUPPLY_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SUPPLY_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `usage:"Redis connection URL for cart storage (SUPPLY_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	Gateway     GatewayConfig
	Delivery    DeliveryConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// GatewayConfig holds the payment gateway merchant credentials.
type GatewayConfig struct {
	BaseURL  string `default:"https://api.razorpay.com" usage:"Payment gateway base URL" flag:"gateway-base-url"`
	KeyID    string `usage:"Gateway publishable key id (SUPPLY_GATEWAY_KEYID)" flag:"gateway-key-id"`
	Secret   string `usage:"Gateway signing secret (SUPPLY_GATEWAY_SECRET)" flag:"gateway-secret"`
	Currency string `default:"INR" usage:"Currency code for payment sessions"`
}

// DeliveryConfig holds fallback fee parameters for locations without an
// active fee schedule.
type DeliveryConfig struct {
	DefaultFee           float64 `default:"80"   usage:"Fallback flat delivery fee" flag:"default-delivery-fee"`
	DefaultFreeThreshold float64 `default:"3000" usage:"Fallback free-delivery subtotal threshold" flag:"default-free-threshold"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SUPPLY",
		Files:     []string{"config.yaml", "/etc/supply/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SUPPLY_DATABASE_URL or DATABASE_URL")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("redis URL is required: set SUPPLY_REDIS_URL or REDIS_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// to the application's SUPPLY_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.RedisURL == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.RedisURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
