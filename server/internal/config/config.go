package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the recorder configuration.
const (
	DefaultHTTPPort       = 8080
	DefaultLogLevel       = "info"
	DefaultProject        = "Ephyphonic"
	DefaultOwner          = "Angelo Araya"
	DefaultStoreKey       = "orchestrator_telemetry"
	DefaultSweepPattern   = "celery-task-meta-*"
	DefaultStreamInterval = 5 * time.Second
)

// Environment variables that override the file.
const (
	EnvStoreURL  = "STORE_URL"
	EnvRedisURL  = "REDIS_URL" // accepted when STORE_URL is unset
	EnvTargetURL = "TARGET_URL"
)

// Config holds the recorder configuration.
type Config struct {
	// HTTPPort is the port the API, metrics and stream endpoints listen on.
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	Project ProjectConfig `yaml:"project"`
	Store   StoreConfig   `yaml:"store"`
	Probe   ProbeConfig   `yaml:"probe"`
	Sweep   SweepConfig   `yaml:"sweep"`
	Stream  StreamConfig  `yaml:"stream"`
}

// ProjectConfig is echoed back by the status endpoint.
type ProjectConfig struct {
	Name  string `yaml:"name"`
	Owner string `yaml:"owner"`
}

// StoreConfig selects the ordered backing store.
type StoreConfig struct {
	// URL is redis://, rediss://, unix://, sqlite:// or memory://.
	// Overridden by $STORE_URL (or $REDIS_URL). Empty leaves the recorder
	// unable to record, which is reported per request rather than at startup.
	URL string `yaml:"url"`

	// Key is the sorted-set key holding the retention log.
	Key string `yaml:"key"`
}

// ProbeConfig describes the single monitored target.
type ProbeConfig struct {
	// TargetURL is probed on every run. Overridden by $TARGET_URL.
	TargetURL string `yaml:"target_url"`

	// InsecureSkipVerify disables TLS verification against the target.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	UserAgent string `yaml:"user_agent"`
}

// SweepConfig controls the job-result key sweep run after every probe.
type SweepConfig struct {
	Enabled bool   `yaml:"enabled"`
	Pattern string `yaml:"pattern"`
}

// StreamConfig controls the websocket status stream.
type StreamConfig struct {
	// Interval between status pushes to connected clients (default 5s).
	Interval time.Duration `yaml:"interval"`
}

// Load builds the configuration. An empty path skips the file and uses
// defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps LogLevel to a slog.Level. validate rejects unknown names.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		HTTPPort: DefaultHTTPPort,
		LogLevel: DefaultLogLevel,
		Project: ProjectConfig{
			Name:  DefaultProject,
			Owner: DefaultOwner,
		},
		Store: StoreConfig{
			Key: DefaultStoreKey,
		},
		Sweep: SweepConfig{
			Enabled: true,
			Pattern: DefaultSweepPattern,
		},
		Stream: StreamConfig{
			Interval: DefaultStreamInterval,
		},
	}
}

// applyEnv lets the environment override connection settings, so the same
// file can be shipped to every deployment.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvStoreURL); v != "" {
		cfg.Store.URL = v
	} else if v := os.Getenv(EnvRedisURL); v != "" && cfg.Store.URL == "" {
		cfg.Store.URL = v
	}
	if v := os.Getenv(EnvTargetURL); v != "" {
		cfg.Probe.TargetURL = v
	}
	cfg.Store.URL = strings.TrimSpace(cfg.Store.URL)
	cfg.Probe.TargetURL = strings.TrimSpace(cfg.Probe.TargetURL)
}

// validate checks structural constraints on the parsed configuration.
// Missing store or target URLs are not errors here.
func validate(cfg *Config) error {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d is out of range [1, 65535]", cfg.HTTPPort)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q unknown: want debug|info|warn|error", cfg.LogLevel)
	}
	if cfg.Store.Key == "" {
		return fmt.Errorf("store.key must not be empty")
	}
	if cfg.Sweep.Enabled && cfg.Sweep.Pattern == "" {
		return fmt.Errorf("sweep.pattern must not be empty when sweep is enabled")
	}
	if cfg.Stream.Interval <= 0 {
		return fmt.Errorf("stream.interval must be positive")
	}
	if t := cfg.Probe.TargetURL; t != "" &&
		!strings.HasPrefix(t, "http://") && !strings.HasPrefix(t, "https://") {
		return fmt.Errorf("probe.target_url %q must be an http:// or https:// URL", t)
	}
	return nil
}
