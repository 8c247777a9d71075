// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable Load reads the config path from.
const EnvVar = "RUNSCOPE_CONFIG"

// Config is the full runscope configuration.
type Config struct {
	Collector CollectorConfig `yaml:"collector"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// CollectorConfig sizes the aggregation core.
type CollectorConfig struct {
	// EventQueueCapacity is the number of lifecycle events the
	// producer-to-aggregator queue holds. Rounded up to a power of
	// two. Producers drop events when the queue is full.
	EventQueueCapacity int `yaml:"event_queue_capacity"`

	// RetentionDuration is how long completed tasks and dropped
	// resources stay visible after retirement.
	RetentionDuration time.Duration `yaml:"retention_duration"`

	// AsyncOpRetention overrides RetentionDuration for async ops,
	// which are far more numerous. Zero means RetentionDuration.
	AsyncOpRetention time.Duration `yaml:"async_op_retention"`

	// PublishInterval is the reap-and-publish cadence.
	PublishInterval time.Duration `yaml:"publish_interval"`

	// ResidentCapacity bounds the total number of resident entities.
	// Only retired entities are evicted to enforce it.
	ResidentCapacity int `yaml:"resident_capacity"`

	// HistogramPrecision is the number of significant binary digits
	// kept per recorded duration (1-10). Relative bucket error is at
	// most 2^-(precision-1).
	HistogramPrecision int `yaml:"histogram_precision"`

	// SubscriberBuffer is the per-subscriber message channel capacity.
	SubscriberBuffer int `yaml:"subscriber_buffer"`
}

// ServerConfig configures the inspection socket and metrics endpoint.
type ServerConfig struct {
	// SocketPath is the Unix socket the subscription server listens on.
	SocketPath string `yaml:"socket_path"`

	// MetricsAddress is the TCP address for the Prometheus /metrics
	// endpoint. Empty disables it.
	MetricsAddress string `yaml:"metrics_address"`
}

// LogConfig selects the slog handler built by NewLogger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Collector: CollectorConfig{
			EventQueueCapacity: 4096,
			RetentionDuration:  6 * time.Second,
			AsyncOpRetention:   time.Second,
			PublishInterval:    time.Second,
			ResidentCapacity:   10000,
			HistogramPrecision: 5,
			SubscriberBuffer:   8,
		},
		Server: ServerConfig{
			SocketPath: "${XDG_RUNTIME_DIR:-/tmp}/runscope.sock",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the file named by RUNSCOPE_CONFIG. There is no fallback
// search path.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of a runscope.yaml file, or use --config", EnvVar)
	}
	return LoadFile(path)
}

// LoadFile reads and validates the YAML file at path on top of Default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML data on top of Default, expands path variables,
// and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	cfg.ExpandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) ExpandVariables() {
	c.Server.SocketPath = expandVars(c.Server.SocketPath)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	collector := c.Collector

	if collector.EventQueueCapacity < 2 {
		errs = append(errs, fmt.Errorf("collector.event_queue_capacity must be at least 2, got %d", collector.EventQueueCapacity))
	}
	if collector.RetentionDuration < 0 {
		errs = append(errs, fmt.Errorf("collector.retention_duration must not be negative"))
	}
	if collector.AsyncOpRetention < 0 {
		errs = append(errs, fmt.Errorf("collector.async_op_retention must not be negative"))
	}
	if collector.PublishInterval <= 0 {
		errs = append(errs, fmt.Errorf("collector.publish_interval must be positive"))
	}
	if collector.ResidentCapacity < 1 {
		errs = append(errs, fmt.Errorf("collector.resident_capacity must be positive, got %d", collector.ResidentCapacity))
	}
	if collector.HistogramPrecision < 1 || collector.HistogramPrecision > 10 {
		errs = append(errs, fmt.Errorf("collector.histogram_precision must be within 1-10, got %d", collector.HistogramPrecision))
	}
	if collector.SubscriberBuffer < 1 {
		errs = append(errs, fmt.Errorf("collector.subscriber_buffer must be positive, got %d", collector.SubscriberBuffer))
	}
	if c.Server.SocketPath == "" {
		errs = append(errs, fmt.Errorf("server.socket_path is required"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// NewLogger builds the slog logger described by the log section.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}
	switch l.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, options)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, options)), nil
	default:
		return nil, fmt.Errorf("log.format must be text or json, got %q", l.Format)
	}
}

func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", name)
	}
}
