// Package config provides configuration loading and validation for the crawler.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for environment variable overrides, e.g. HANDLE_CRAWLER_TOKEN.
const EnvPrefix = "HANDLE_CRAWLER"

// DefaultUserAgent mimics a desktop browser. The probe host varies its markup by client.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/81.0.4044.138 Safari/537.36"

// Config represents the crawler configuration that can be loaded from a JSON file.
// Environment variables override file values; CLI flags override both.
type Config struct {
	// Directory host
	DirectoryURL string `json:"directory_url,omitempty" envconfig:"DIRECTORY_URL" validate:"omitempty,url"`
	Token        string `json:"token,omitempty" envconfig:"TOKEN"`

	// Probe host
	ProbeURL  string `json:"probe_url,omitempty" envconfig:"PROBE_URL" validate:"required,url"`
	PublicURL string `json:"public_url,omitempty" envconfig:"PUBLIC_URL" validate:"required,url"`

	// Limits
	ProbeConcurrency  int     `json:"probe_concurrency,omitempty" envconfig:"PROBE_CONCURRENCY" validate:"min=1,max=64"`
	MemberConcurrency int     `json:"member_concurrency,omitempty" envconfig:"MEMBER_CONCURRENCY" validate:"min=1,max=32"`
	ProbeRate         float64 `json:"probe_rate,omitempty" envconfig:"PROBE_RATE" validate:"gte=0"` // requests per second, 0 = unlimited
	TimeoutSeconds    int     `json:"timeout_seconds,omitempty" envconfig:"TIMEOUT_SECONDS" validate:"min=1"`
	RetryCount        int     `json:"retry_count,omitempty" envconfig:"RETRY_COUNT" validate:"gte=0,max=10"`
	RetryBaseMillis   int     `json:"retry_base_millis,omitempty" envconfig:"RETRY_BASE_MILLIS" validate:"min=1"`
	RetryMaxMillis    int     `json:"retry_max_millis,omitempty" envconfig:"RETRY_MAX_MILLIS" validate:"min=1"`
	UserAgent         string  `json:"user_agent,omitempty" envconfig:"USER_AGENT"`
	// ProbeCache memoizes classifications for the run so a handle shared by
	// several members is probed once.
	ProbeCache bool `json:"probe_cache,omitempty" envconfig:"PROBE_CACHE"`

	// Output
	Output      string `json:"output,omitempty" envconfig:"OUTPUT"`
	DatabaseURL string `json:"database_url,omitempty" envconfig:"DATABASE_URL"`

	// Observability
	LogLevel    string `json:"log_level,omitempty" envconfig:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
	LogFile     string `json:"log_file,omitempty" envconfig:"LOG_FILE"`
	MetricsAddr string `json:"metrics_addr,omitempty" envconfig:"METRICS_ADDR" validate:"omitempty,hostname_port"`

	Markup Markup `json:"markup" envconfig:"MARKUP"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		ProbeURL:          "https://t.me",
		PublicURL:         "https://t.me",
		ProbeConcurrency:  4,
		MemberConcurrency: 2,
		TimeoutSeconds:    30,
		RetryCount:        3,
		RetryBaseMillis:   500,
		RetryMaxMillis:    10000,
		UserAgent:         DefaultUserAgent,
		Output:            "members.json",
		LogLevel:          "info",
		Markup:            DefaultMarkup(),
	}
}

// LoadConfig loads configuration from a JSON file on top of Default().
// Fields absent from the file keep their default values.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Load builds the effective configuration: defaults, then the optional JSON
// file at path, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = *fileCfg
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from HANDLE_CRAWLER_* environment variables.
// Unset variables leave the current values untouched.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to read environment config: %w", err)
	}
	return nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.RetryMaxMillis < c.RetryBaseMillis {
		return fmt.Errorf("config error: 'retry_max_millis' must be >= 'retry_base_millis'")
	}

	return c.Markup.Validate()
}

// RequireDirectory checks the settings needed to sign in to the directory.
// Commands that only probe handles do not need them.
func (c *Config) RequireDirectory() error {
	if c.DirectoryURL == "" {
		return fmt.Errorf("config error: 'directory_url' is required")
	}
	if c.Token == "" {
		return fmt.Errorf("config error: 'token' is required")
	}
	return nil
}

// Timeout returns the per-request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryBase returns the initial retry backoff interval.
func (c *Config) RetryBase() time.Duration {
	return time.Duration(c.RetryBaseMillis) * time.Millisecond
}

// RetryMax returns the maximum retry backoff interval.
func (c *Config) RetryMax() time.Duration {
	return time.Duration(c.RetryMaxMillis) * time.Millisecond
}
