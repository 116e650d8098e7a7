package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `usage:"Redis URL for durable cart storage; in-memory fallback when empty" flag:"redis-url"`

	Session   SessionConfig
	Gateway   GatewayConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// SessionConfig controls session token issuing and the guard redirect paths.
type SessionConfig struct {
	Secret      string        `usage:"HMAC secret for session tokens (STORE_SESSION_SECRET)" flag:"session-secret"`
	TTL         time.Duration `default:"24h" usage:"Session token lifetime"`
	LoginPath   string        `default:"/login" usage:"Path the client redirects to for login" flag:"login-path"`
	ProfilePath string        `default:"/dashboard/user/profile" usage:"Path for completing the shipping address" flag:"profile-path"`
}

// GatewayConfig controls the payment gateway connection.
type GatewayConfig struct {
	BaseURL      string        `usage:"Payment gateway base URL" flag:"gateway-url"`
	PublicKey    string        `usage:"Gateway public key" flag:"gateway-public-key"`
	PrivateKey   string        `usage:"Gateway private key" flag:"gateway-private-key"`
	TokenTimeout time.Duration `default:"10s" usage:"Bound on the client token request" flag:"gateway-token-timeout"`
	SaleTimeout  time.Duration `default:"30s" usage:"Bound on the settlement request" flag:"gateway-sale-timeout"`

	NonceCapacity uint    `default:"1000000" usage:"Expected nonce volume for the replay guard" flag:"nonce-capacity"`
	NonceFPRate   float64 `default:"0.001" usage:"Replay guard false-positive rate" flag:"nonce-fp-rate"`
}

// EmailConfig controls the order confirmation notifier. Empty key disables
// sending.
type EmailConfig struct {
	SendgridKey string `usage:"SendGrid API key (STORE_EMAIL_SENDGRID_KEY)" flag:"sendgrid-key"`
	FromName    string `default:"Storefront" usage:"Confirmation sender name" flag:"email-from-name"`
	FromEmail   string `default:"orders@localhost" usage:"Confirmation sender address" flag:"email-from"`
}

// RateLimitConfig controls the per-client request limiter.
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
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set STORE_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Session.Secret == "" {
		return nil, errors.New("session secret is required: set STORE_SESSION_SECRET")
	}
	if cfg.Gateway.BaseURL == "" {
		return nil, errors.New("gateway URL is required: set STORE_GATEWAY_BASEURL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// to the application's STORE_-prefixed configuration.
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
