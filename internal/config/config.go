package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration derived from environment variables.
type Config struct {
	HTTPPort           string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	LockTimeout        time.Duration
	IntegrityInterval  time.Duration
	PublicRateLimitRPS int
	AuthRateLimitRPS   int
	LogLevel           string
	IdempotencyTTL     time.Duration
}

// AuthEnabled reports whether JWT auth is configured. When no secret is set
// the API runs open, which is the expected mode for local development.
func (c *Config) AuthEnabled() bool {
	return strings.TrimSpace(c.JWTSecret) != ""
}

// Load reads environment variables using viper and returns a typed config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	bindEnv(v, "port", "PORT", "LEDGER_PORT")
	bindEnv(v, "database_url", "DATABASE_URL", "LEDGER_DATABASE_URL")
	bindEnv(v, "redis_url", "REDIS_URL", "LEDGER_REDIS_URL")
	bindEnv(v, "jwt_secret", "JWT_SECRET", "LEDGER_JWT_SECRET")
	bindEnv(v, "jwt_issuer", "JWT_ISSUER", "LEDGER_JWT_ISSUER")
	bindEnv(v, "jwt_audience", "JWT_AUDIENCE", "LEDGER_JWT_AUDIENCE")
	bindEnv(v, "lock_timeout", "LOCK_TIMEOUT", "LEDGER_LOCK_TIMEOUT")
	bindEnv(v, "integrity_interval", "INTEGRITY_INTERVAL", "LEDGER_INTEGRITY_INTERVAL")
	bindEnv(v, "public_rate_limit_rps", "PUBLIC_RATE_LIMIT_RPS", "LEDGER_PUBLIC_RATE_LIMIT_RPS")
	bindEnv(v, "auth_rate_limit_rps", "AUTH_RATE_LIMIT_RPS", "LEDGER_AUTH_RATE_LIMIT_RPS")
	bindEnv(v, "log_level", "LOG_LEVEL", "LEDGER_LOG_LEVEL")
	bindEnv(v, "idempotency_ttl", "IDEMPOTENCY_TTL", "LEDGER_IDEMPOTENCY_TTL")

	v.SetDefault("port", "8080")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_issuer", "slick-ledger")
	v.SetDefault("jwt_audience", "ledger-api")
	v.SetDefault("lock_timeout", "5s")
	v.SetDefault("integrity_interval", "1h")
	v.SetDefault("public_rate_limit_rps", 10)
	v.SetDefault("auth_rate_limit_rps", 100)
	v.SetDefault("log_level", "info")
	v.SetDefault("idempotency_ttl", "24h")

	lockTimeout, err := time.ParseDuration(v.GetString("lock_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCK_TIMEOUT: %w", err)
	}
	integrityInterval, err := time.ParseDuration(v.GetString("integrity_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid INTEGRITY_INTERVAL: %w", err)
	}
	ttl, err := time.ParseDuration(v.GetString("idempotency_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
	}

	cfg := &Config{
		HTTPPort:           v.GetString("port"),
		DatabaseURL:        v.GetString("database_url"),
		RedisURL:           v.GetString("redis_url"),
		JWTSecret:          v.GetString("jwt_secret"),
		JWTIssuer:          v.GetString("jwt_issuer"),
		JWTAudience:        v.GetString("jwt_audience"),
		LockTimeout:        lockTimeout,
		IntegrityInterval:  integrityInterval,
		PublicRateLimitRPS: max(v.GetInt("public_rate_limit_rps"), 1),
		AuthRateLimitRPS:   max(v.GetInt("auth_rate_limit_rps"), 1),
		LogLevel:           v.GetString("log_level"),
		IdempotencyTTL:     ttl,
	}

	if cfg.AuthEnabled() {
		if len(cfg.JWTSecret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
		}
		if strings.TrimSpace(cfg.JWTIssuer) == "" {
			return nil, fmt.Errorf("JWT_ISSUER is required when JWT_SECRET is set")
		}
		if strings.TrimSpace(cfg.JWTAudience) == "" {
			return nil, fmt.Errorf("JWT_AUDIENCE is required when JWT_SECRET is set")
		}
	}

	return cfg, nil
}

func bindEnv(v *viper.Viper, key string, names ...string) {
	args := append([]string{key}, names...)
	_ = v.BindEnv(args...)
}
