package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	AuthMode       string   `mapstructure:"AUTH_MODE"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	// Agent settings (countdown/alarm/offline runtime).
	DataDir          string `mapstructure:"DATA_DIR"`
	ToneProfile      string `mapstructure:"TONE_PROFILE"`
	CustomToneFile   string `mapstructure:"CUSTOM_TONE_FILE"`
	RingSeconds      int    `mapstructure:"RING_SECONDS"`
	PollSeconds      int    `mapstructure:"POLL_SECONDS"`
	OfflineSweepSpec string `mapstructure:"OFFLINE_SWEEP_SPEC"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // auto-detect: "" -> inferred from ENV
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("DATA_DIR", ".dosewatch")
	v.SetDefault("TONE_PROFILE", "classic")
	v.SetDefault("RING_SECONDS", 30)
	v.SetDefault("POLL_SECONDS", 60)
	v.SetDefault("OFFLINE_SWEEP_SPEC", "@every 1m")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("AUTH_MODE")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("DATA_DIR")
	v.BindEnv("TONE_PROFILE")
	v.BindEnv("CUSTOM_TONE_FILE")
	v.BindEnv("RING_SECONDS")
	v.BindEnv("POLL_SECONDS")
	v.BindEnv("OFFLINE_SWEEP_SPEC")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get full access.")
		log.Println("WARNING: Set ENV=production and configure AUTH_ISSUER for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// RingDuration returns the maximum alarm ring duration.
func (c *Config) RingDuration() time.Duration {
	if c.RingSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RingSeconds) * time.Second
}

// PollInterval returns how often the agent refreshes reminders from the server.
func (c *Config) PollInterval() time.Duration {
	if c.PollSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.PollSeconds) * time.Second
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise, the mode is inferred:
//   - ENV=development → "development" (no auth, all requests get full access)
//   - AUTH_ISSUER set → "external" (Keycloak, Auth0, etc.)
//   - Otherwise       → "local" (HMAC signing key issued by this server)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	if c.AuthIssuer != "" {
		return "external"
	}
	return "local"
}

// Validate checks that the configuration is safe to run. The server requires
// DATABASE_URL; in non-development modes real JWT authentication must be
// configured (either an external issuer or a local signing key).
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	mode := c.ResolvedAuthMode()
	switch mode {
	case "development":
	case "external":
		if c.AuthIssuer == "" {
			return fmt.Errorf(
				"AUTH_ISSUER must be set when AUTH_MODE is \"external\" (current ENV=%q). "+
					"Refusing to start without authentication configuration", c.Env)
		}
	case "local":
		if c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is required when AUTH_MODE is \"local\"")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be \"development\", \"local\", or \"external\", got %q", mode)
	}

	if c.RingSeconds < 0 {
		return fmt.Errorf("RING_SECONDS must not be negative, got %d", c.RingSeconds)
	}
	if c.PollSeconds < 0 {
		return fmt.Errorf("POLL_SECONDS must not be negative, got %d", c.PollSeconds)
	}

	return nil
}

// ValidateAgent checks the agent-side configuration.
func (c *Config) ValidateAgent() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the agent")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required for the agent")
	}
	return nil
}
