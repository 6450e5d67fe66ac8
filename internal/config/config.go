package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Yrrrrrf/ts-forge/internal/request"
)

// DefaultFile is read when no config path is given
const DefaultFile = "tsforge.yaml"

// Dump formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config holds all configuration for ts-forge.
// Values come from an optional YAML file; environment variables always override them.
type Config struct {
	// BaseURL is the REST backend root, e.g. http://localhost:8000
	BaseURL string   `yaml:"base_url" env:"TSFORGE_BASE_URL" env-default:""`
	Schemas []string `yaml:"schemas" env:"TSFORGE_SCHEMAS" env-separator:","`

	// DatabaseURL switches metadata discovery to direct introspection
	DatabaseURL string `yaml:"-" env:"TSFORGE_DATABASE_URL"` // Secret - not in YAML

	Request RequestConfig `yaml:"request"`

	OutputDir  string `yaml:"output_dir" env:"TSFORGE_OUTPUT_DIR" env-default:"src/gen"`
	DumpFormat string `yaml:"dump_format" env:"TSFORGE_DUMP_FORMAT" env-default:"json"`

	LogLevel string `yaml:"log_level" env:"TSFORGE_LOG_LEVEL" env-default:"info"`
	DevLog   bool   `yaml:"dev_log" env:"TSFORGE_DEV_LOG" env-default:"false"`
}

// RequestConfig controls timeouts and retries against the backend
type RequestConfig struct {
	Timeout       time.Duration     `yaml:"timeout" env:"TSFORGE_TIMEOUT" env-default:"30s"`
	MaxRetries    int               `yaml:"max_retries" env:"TSFORGE_MAX_RETRIES" env-default:"3"`
	RetryBackoff  time.Duration     `yaml:"retry_backoff" env:"TSFORGE_RETRY_BACKOFF" env-default:"1s"`
	MaxRetryDelay time.Duration     `yaml:"max_retry_delay" env:"TSFORGE_MAX_RETRY_DELAY" env-default:"30s"`
	Headers       map[string]string `yaml:"headers" env:"TSFORGE_HEADERS"`
}

// Load reads path (DefaultFile when empty) with environment overrides. A
// missing default file is not an error; configuration then comes from the
// environment alone. An explicitly named file must exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case errors.Is(statErr, os.ErrNotExist) && !explicit:
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, statErr)
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.DumpFormat = strings.ToLower(strings.TrimSpace(c.DumpFormat))

	schemas := c.Schemas[:0]
	for _, s := range c.Schemas {
		if s = strings.TrimSpace(s); s != "" {
			schemas = append(schemas, s)
		}
	}
	c.Schemas = schemas
}

// Validate checks the settings needed to talk to the backend. Offline
// introspection (DatabaseURL set) does not need a BaseURL.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		if c.BaseURL == "" {
			return errors.New("base_url is required (set TSFORGE_BASE_URL or base_url in " + DefaultFile + ")")
		}
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("base_url %q is not an absolute URL", c.BaseURL)
		}
	}
	if c.Request.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.Request.MaxRetries)
	}
	if c.Request.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Request.Timeout)
	}
	if c.Request.RetryBackoff < 0 {
		return fmt.Errorf("retry_backoff must not be negative, got %s", c.Request.RetryBackoff)
	}
	switch c.DumpFormat {
	case FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("dump_format must be %q or %q, got %q", FormatJSON, FormatYAML, c.DumpFormat)
	}
	if c.OutputDir == "" {
		return errors.New("output_dir must not be empty")
	}
	return nil
}

// ClientConfig returns the request primitive settings for this configuration
func (c *Config) ClientConfig() request.Config {
	return request.Config{
		BaseURL:        c.BaseURL,
		Timeout:        c.Request.Timeout,
		MaxAttempts:    c.Request.MaxRetries,
		InitialBackoff: c.Request.RetryBackoff,
		MaxBackoff:     c.Request.MaxRetryDelay,
		Headers:        c.Request.Headers,
	}
}
