package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	Tracing   TracingConfig
	Metrics   MetricsConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// TracingConfig holds span export configuration.
type TracingConfig struct {
	ServiceName    string        `envconfig:"SERVICE_NAME" default:"api"`
	Endpoint       string        `envconfig:"TRACE_ENDPOINT"`
	QueueSize      int           `envconfig:"TRACE_QUEUE_SIZE" default:"1000"`
	BatchSize      int           `envconfig:"TRACE_BATCH_SIZE" default:"128"`
	FlushInterval  time.Duration `envconfig:"TRACE_FLUSH_INTERVAL" default:"2s"`
	EnqueueTimeout time.Duration `envconfig:"TRACE_ENQUEUE_TIMEOUT" default:"5ms"`
	ExportTimeout  time.Duration `envconfig:"TRACE_EXPORT_TIMEOUT" default:"5s"`
	Compress       bool          `envconfig:"TRACE_COMPRESS" default:"true"`
}

// MetricsConfig holds metrics registry configuration.
type MetricsConfig struct {
	RuntimeCollectors bool `envconfig:"METRICS_RUNTIME" default:"true"`
	Window            int  `envconfig:"METRICS_WINDOW" default:"1024"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"false"`
}

// CORSConfig toggles the CORS middleware.
type CORSConfig struct {
	Enabled bool `envconfig:"CORS_ENABLED" default:"false"`
}

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load loads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express as types.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("%w: PORT %q must be a number between 1 and 65535", ErrInvalidConfig, c.Server.Port)
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return fmt.Errorf("%w: LOG_LEVEL %q: %v", ErrInvalidConfig, c.Logging.Level, err)
	}

	t := c.Tracing
	switch {
	case t.ServiceName == "":
		return fmt.Errorf("%w: SERVICE_NAME must not be empty", ErrInvalidConfig)
	case t.QueueSize <= 0:
		return fmt.Errorf("%w: TRACE_QUEUE_SIZE must be positive", ErrInvalidConfig)
	case t.BatchSize <= 0:
		return fmt.Errorf("%w: TRACE_BATCH_SIZE must be positive", ErrInvalidConfig)
	case t.FlushInterval <= 0:
		return fmt.Errorf("%w: TRACE_FLUSH_INTERVAL must be positive", ErrInvalidConfig)
	case t.EnqueueTimeout < 0:
		return fmt.Errorf("%w: TRACE_ENQUEUE_TIMEOUT must not be negative", ErrInvalidConfig)
	case t.ExportTimeout <= 0:
		return fmt.Errorf("%w: TRACE_EXPORT_TIMEOUT must be positive", ErrInvalidConfig)
	}

	if c.Metrics.Window <= 0 {
		return fmt.Errorf("%w: METRICS_WINDOW must be positive", ErrInvalidConfig)
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("%w: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive", ErrInvalidConfig)
	}

	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Tracing: TracingConfig{
			ServiceName:    "api",
			QueueSize:      1000,
			BatchSize:      128,
			FlushInterval:  2 * time.Second,
			EnqueueTimeout: 5 * time.Millisecond,
			ExportTimeout:  5 * time.Second,
			Compress:       true,
		},
		Metrics: MetricsConfig{
			RuntimeCollectors: true,
			Window:            1024,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           false,
		},
	}
}
