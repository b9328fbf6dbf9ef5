// Package config provides the runtime settings for the relay: defaults,
// sanitizing, an optional YAML file and RELAY_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimitConfig defines the parameters for per-connection request rate limiting.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// Config holds the relay settings shared by both modes.
type Config struct {
	PoolSize        int             `yaml:"pool_size"`
	ServerHistory   int             `yaml:"server_history"`
	ClientHistory   int             `yaml:"client_history"`
	EditCapacity    int             `yaml:"edit_capacity"`
	BroadcastQueue  int             `yaml:"broadcast_queue"`
	MaxMessageSize  int64           `yaml:"max_message_size"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	AllowedOrigins  []string        `yaml:"allowed_origins"`
	FrameInterval   time.Duration   `yaml:"frame_interval"`
	RequestTimeout  time.Duration   `yaml:"request_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	LogFile         string          `yaml:"log_file"`
}

// Default returns a Config populated with default values for all settings.
func Default() Config {
	return Config{
		PoolSize:       128,
		ServerHistory:  8,
		ClientHistory:  6,
		EditCapacity:   76,
		BroadcastQueue: 256,
		MaxMessageSize: 512,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		FrameInterval:   33 * time.Millisecond,
		RequestTimeout:  10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// sanitize replaces unusable values with their defaults.
func sanitize(cfg Config) Config {
	def := Default()

	if cfg.PoolSize <= 0 {
		cfg.PoolSize = def.PoolSize
	}
	if cfg.ServerHistory <= 0 {
		cfg.ServerHistory = def.ServerHistory
	}
	if cfg.ClientHistory <= 0 {
		cfg.ClientHistory = def.ClientHistory
	}
	if cfg.EditCapacity <= 0 {
		cfg.EditCapacity = def.EditCapacity
	}
	if cfg.BroadcastQueue <= 0 {
		cfg.BroadcastQueue = def.BroadcastQueue
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = def.FrameInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// LoadFile reads a YAML config file on top of the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return sanitize(cfg), nil
}

// FromEnv builds a Config from the file named by RELAY_CONFIG, if any, and
// then the RELAY_* variables. Unset or invalid variables keep the value
// they would otherwise have.
func FromEnv() (Config, error) {
	cfg := Default()
	if path := os.Getenv("RELAY_CONFIG"); path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.PoolSize = envInt("RELAY_POOL_SIZE", cfg.PoolSize)
	cfg.ServerHistory = envInt("RELAY_SERVER_HISTORY", cfg.ServerHistory)
	cfg.ClientHistory = envInt("RELAY_CLIENT_HISTORY", cfg.ClientHistory)
	cfg.EditCapacity = envInt("RELAY_EDIT_CAPACITY", cfg.EditCapacity)
	cfg.BroadcastQueue = envInt("RELAY_BROADCAST_QUEUE", cfg.BroadcastQueue)
	cfg.RateLimit.Burst = envInt("RELAY_RATE_LIMIT_BURST", cfg.RateLimit.Burst)

	if maxSize := os.Getenv("RELAY_MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}
	if interval := os.Getenv("RELAY_RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseDuration(interval, cfg.RateLimit.RefillInterval)
	}
	if interval := os.Getenv("RELAY_FRAME_INTERVAL"); interval != "" {
		cfg.FrameInterval = parseDuration(interval, cfg.FrameInterval)
	}
	if timeout := os.Getenv("RELAY_REQUEST_TIMEOUT"); timeout != "" {
		cfg.RequestTimeout = parseDuration(timeout, cfg.RequestTimeout)
	}
	if timeout := os.Getenv("RELAY_SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseDuration(timeout, cfg.ShutdownTimeout)
	}
	if origins := os.Getenv("RELAY_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if logFile, ok := os.LookupEnv("RELAY_LOG_FILE"); ok {
		cfg.LogFile = logFile
	}

	return sanitize(cfg), nil
}

func envInt(name string, defaultValue int) int {
	if value := os.Getenv(name); value != "" {
		return parseIntValue(value, defaultValue)
	}
	return defaultValue
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseDuration accepts Go durations ("250ms") or whole seconds ("2").
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
