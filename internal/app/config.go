package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (KINMEL_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (KINMEL_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	JWTSecret   string `usage:"HMAC secret for JWT verification (KINMEL_JWT_SECRET)" flag:"jwt-secret"`
	Khalti      KhaltiConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// KhaltiConfig configures the Khalti payment gateway client.
type KhaltiConfig struct {
	BaseURL    string        `default:"https://a.khalti.com/api/v2" usage:"Khalti API base URL" flag:"khalti-base-url"`
	SecretKey  string        `usage:"Khalti live secret key (KINMEL_KHALTI_SECRET_KEY)" flag:"khalti-secret-key"`
	ReturnURL  string        `default:"http://localhost:3000/payment/success" usage:"URL the gateway redirects to after payment" flag:"khalti-return-url"`
	CancelURL  string        `default:"http://localhost:3000/payment/cancel" usage:"URL the gateway redirects to on cancellation" flag:"khalti-cancel-url"`
	WebsiteURL string        `default:"http://localhost:3000" usage:"Merchant website URL sent to the gateway" flag:"khalti-website-url"`
	Timeout    time.Duration `default:"10s" usage:"Gateway request timeout" flag:"khalti-timeout"`
}

// RateLimitConfig controls the per-client rate limiter.
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

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KINMEL",
		Files:     []string{"config.yaml", "/etc/kinmel/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set KINMEL_DATABASE_URL or DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret is required: set KINMEL_JWT_SECRET")
	}
	if cfg.Khalti.SecretKey == "" {
		return nil, errors.New("Khalti secret key is required: set KINMEL_KHALTI_SECRET_KEY")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's KINMEL_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
