// Package config loads the process configuration and holds it as a
// process-wide value initialized once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/consentwatch/internal/history"
	"github.com/ppiankov/consentwatch/internal/notify"
	"github.com/ppiankov/consentwatch/internal/ratelimit"
	"github.com/ppiankov/consentwatch/internal/sensitivity"
)

const (
	// EnvConfig overrides the config file path.
	EnvConfig = "CONSENTWATCH_CONFIG"
	// EnvAPIKey overrides scorer.api_key.
	EnvAPIKey = "CONSENTWATCH_API_KEY"
)

// ScorerConfig configures the text sensitivity scorer.
type ScorerConfig struct {
	APIURL    string        `yaml:"api_url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
	Threshold float64       `yaml:"threshold"`
	// RateLimit caps scorer calls per window. Zero disables it.
	RateLimit ratelimit.Limit `yaml:"rate_limit"`
}

// GeoIPConfig points at a MaxMind City database.
type GeoIPConfig struct {
	CityDB string `yaml:"city_db"`
}

// ListenConfig holds the listen addresses of the long-running commands.
type ListenConfig struct {
	HTTP  string `yaml:"http"`
	GRPC  string `yaml:"grpc"`
	Proxy string `yaml:"proxy"`
}

// Config is the full process configuration.
type Config struct {
	Scorer           ScorerConfig           `yaml:"scorer"`
	History          history.Options        `yaml:"history"`
	Catalogue        string                 `yaml:"catalogue"`
	GeoIP            GeoIPConfig            `yaml:"geoip"`
	Alerts           []notify.WebhookConfig `yaml:"alerts"`
	ConcurrentChecks bool                   `yaml:"concurrent_checks"`
	Listen           ListenConfig           `yaml:"listen"`

	// Path is the file the config was read from, empty for defaults.
	Path string `yaml:"-"`
}

// Dir returns ~/.consentwatch, or ".consentwatch" when there is no home.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".consentwatch"
	}
	return filepath.Join(home, ".consentwatch")
}

// DefaultPath is ~/.consentwatch/config.yaml.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns the built-in configuration. It has no API key, so the
// sensitivity evaluator starts disabled.
func DefaultConfig() *Config {
	return &Config{
		Scorer: ScorerConfig{
			APIURL:    sensitivity.DefaultAPIURL,
			Model:     "gpt-4",
			MaxTokens: 200,
			Timeout:   sensitivity.DefaultTimeout,
			Threshold: sensitivity.DefaultThreshold,
		},
		History: history.Options{
			Backend:  "jsonl",
			Path:     filepath.Join(Dir(), "history"),
			Capacity: history.DefaultCapacity,
		},
		Listen: ListenConfig{
			HTTP:  "127.0.0.1:8490",
			GRPC:  "127.0.0.1:8491",
			Proxy: "127.0.0.1:8492",
		},
	}
}

// ScorerConfigured reports whether the sensitivity scorer may be called.
func (c *Config) ScorerConfigured() bool {
	return c != nil && c.Scorer.APIKey != ""
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch c.History.Backend {
	case "", "memory", "jsonl", "sqlite", "postgres":
	default:
		return fmt.Errorf("history.backend: unknown backend %q", c.History.Backend)
	}
	if c.History.Capacity < 0 {
		return fmt.Errorf("history.capacity must not be negative")
	}
	if c.Scorer.Threshold < 0 || c.Scorer.Threshold > 100 {
		return fmt.Errorf("scorer.threshold must be within [0, 100], got %v", c.Scorer.Threshold)
	}
	if c.Scorer.Timeout < 0 {
		return fmt.Errorf("scorer.timeout must not be negative")
	}
	if c.Scorer.RateLimit.MaxRequests < 0 || c.Scorer.RateLimit.Window < 0 {
		return fmt.Errorf("scorer.rate_limit must not be negative")
	}
	for i, a := range c.Alerts {
		if a.URL == "" {
			return fmt.Errorf("alerts[%d]: url is required", i)
		}
		switch a.Format {
		case "", "generic", "slack", "pagerduty":
		default:
			return fmt.Errorf("alerts[%d]: unknown format %q", i, a.Format)
		}
	}
	return nil
}

// ResolvePath picks the config path: explicit, then $CONSENTWATCH_CONFIG,
// then the default.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return env
	}
	return DefaultPath()
}

// Load reads the YAML file on top of the defaults. A missing file returns
// the defaults. $CONSENTWATCH_API_KEY overrides scorer.api_key.
func Load(path string) (*Config, error) {
	path = ResolvePath(path)
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		cfg.Path = path
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.Scorer.APIKey = key
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

var current atomic.Pointer[Config]

// ErrAlreadyInitialized is returned by a second Init.
var ErrAlreadyInitialized = errors.New("config already initialized")

// Init loads path and installs it as the process configuration. It must be
// called once before the first Get that needs a loaded file.
func Init(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if !current.CompareAndSwap(nil, cfg) {
		return nil, ErrAlreadyInitialized
	}
	return cfg, nil
}

// Set replaces the process configuration. Used by hot reload.
func Set(cfg *Config) {
	current.Store(cfg)
}

// Get returns the process configuration, or the unconfigured defaults
// before Init.
func Get() *Config {
	if cfg := current.Load(); cfg != nil {
		return cfg
	}
	return DefaultConfig()
}
