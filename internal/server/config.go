package server

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the relay server settings. Zero values are replaced by defaults
// when the server is built.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64

	// RateLimit throttles typing and presence signals. new_message is never
	// throttled.
	RateLimit RateLimitConfig

	// SendBufferSize is the number of frames queued per connection before the
	// connection is dropped as too slow.
	SendBufferSize      int
	// PersistTimeout bounds a single background message write.
	PersistTimeout      time.Duration
	// TypingExcludeSender keeps typing signals from echoing to their sender.
	TypingExcludeSender bool
	// ShutdownTimeout bounds hub and store draining on shutdown.
	ShutdownTimeout     time.Duration
	// LogFile, when set, is served on GET /logs.
	LogFile             string
}

const (
	defaultPort            = ":8080"
	defaultMaxMessageSize  = 1 << 20
	defaultBurst           = 5
	defaultRefillInterval  = time.Second
	defaultSendBufferSize  = 256
	defaultPersistTimeout  = 5 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// DefaultConfig returns a Config populated with default values for all settings.
func DefaultConfig() Config {
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: defaultRefillInterval,
		},
		SendBufferSize:      defaultSendBufferSize,
		PersistTimeout:      defaultPersistTimeout,
		TypingExcludeSender: true,
		ShutdownTimeout:     defaultShutdownTimeout,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultBurst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaultRefillInterval
	}

	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}

	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// ParseOrigins splits a comma separated origin list, dropping blanks.
func ParseOrigins(origins string) []string {
	parts := lo.Map(strings.Split(origins, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Compact(parts)
}
