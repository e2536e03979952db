// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend names accepted by STATE_BACKEND and GROUP_BACKEND.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNats   = "nats"
)

// Audit modes accepted by AUDIT_MODE.
const (
	AuditDirect = "direct"
	AuditQueue  = "queue"
)

// Config holds every tunable of the lobby service. Values come from the
// environment (and .env through godotenv/autoload in the binaries).
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`
	NatsURL   string `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`

	// StateBackend selects where presence and rate-limit windows live.
	StateBackend string `env:"STATE_BACKEND" envDefault:"memory"`
	// GroupBackend selects the broadcast fan-out used by lobby session groups.
	GroupBackend string `env:"GROUP_BACKEND" envDefault:"memory"`

	PresenceTTL      time.Duration `env:"PRESENCE_TTL" envDefault:"5m"`
	RateLimitCount   int           `env:"RATE_LIMIT_COUNT" envDefault:"3"`
	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"2s"`
	RateLimitKeyTTL  time.Duration `env:"RATE_LIMIT_KEY_TTL" envDefault:"10s"`
	MaxMessageLength int           `env:"MAX_MESSAGE_LENGTH" envDefault:"2000"`
	OutboundBuffer   int           `env:"OUTBOUND_BUFFER" envDefault:"64"`

	AuditMode      string `env:"AUDIT_MODE" envDefault:"direct"`
	AuditQueueName string `env:"AUDIT_QUEUE_NAME" envDefault:"lobby_events"`

	JWTPublicKeyPath  string `env:"JWT_PUBLIC_KEY_PATH"`
	JWTPrivateKeyPath string `env:"JWT_PRIVATE_KEY_PATH"`
	TokenExpire       string `env:"TOKEN_EXPIRE_TIME" envDefault:"never"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	HistorianBatchSize int `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	HistorianFlushMs   int `env:"HISTORIAN_FLUSH_MS" envDefault:"500"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown backend names and non-positive limits.
func (c *Config) Validate() error {
	c.StateBackend = strings.ToLower(c.StateBackend)
	c.GroupBackend = strings.ToLower(c.GroupBackend)
	c.AuditMode = strings.ToLower(c.AuditMode)

	switch c.StateBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("invalid STATE_BACKEND %q", c.StateBackend)
	}
	switch c.GroupBackend {
	case BackendMemory, BackendRedis, BackendNats:
	default:
		return fmt.Errorf("invalid GROUP_BACKEND %q", c.GroupBackend)
	}
	switch c.AuditMode {
	case AuditDirect, AuditQueue:
	default:
		return fmt.Errorf("invalid AUDIT_MODE %q", c.AuditMode)
	}
	if c.RateLimitCount <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit count and window must be positive")
	}
	if c.PresenceTTL <= 0 {
		return fmt.Errorf("PRESENCE_TTL must be positive")
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be positive")
	}
	if c.OutboundBuffer <= 0 {
		c.OutboundBuffer = 64
	}
	return nil
}

// TokenTTL converts TOKEN_EXPIRE_TIME into a duration; "never", "0" or an
// empty value yield zero (no exp claim).
func (c *Config) TokenTTL() (time.Duration, error) {
	switch c.TokenExpire {
	case "", "0", "never":
		return 0, nil
	}
	d, err := time.ParseDuration(c.TokenExpire)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}
