package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"founderaudit/internal/events"
)

const FileName = "funnel.yml"

// Config models funnel.yml.
type Config struct {
	Server struct {
		Addr         string        `yaml:"addr"`
		BasePath     string        `yaml:"base_path"`
		CORSOrigins  []string      `yaml:"cors_origins"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`
	Storage struct {
		// Path overrides <workspace>/.founderaudit/founderaudit.db.
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled   bool   `yaml:"enabled"`
		Path      string `yaml:"path"`
		Namespace string `yaml:"namespace"`
	} `yaml:"metrics"`
	Reports struct {
		Timezone      string `yaml:"timezone"`
		CacheSize     int    `yaml:"cache_size"`
		DefaultPeriod string `yaml:"default_period"`
	} `yaml:"reports"`
	Webhooks struct {
		URL          string        `yaml:"url"`
		Events       []string      `yaml:"events"`
		Timeout      time.Duration `yaml:"timeout"`
		MaxElapsed   time.Duration `yaml:"max_elapsed"`
		PollInterval time.Duration `yaml:"poll_interval"`
	} `yaml:"webhooks"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with fba config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("config.server timeouts must not be negative")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config.logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.logging.format must be text or json")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("config.metrics.path must start with /")
	}
	if c.Reports.CacheSize < 0 {
		return fmt.Errorf("config.reports.cache_size must not be negative")
	}
	switch c.Reports.DefaultPeriod {
	case "", "week", "month":
	default:
		return fmt.Errorf("config.reports.default_period must be week or month")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Webhooks.URL != "" {
		u, err := url.Parse(c.Webhooks.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config.webhooks.url must be an absolute http(s) url")
		}
		for _, evt := range c.Webhooks.Events {
			if !slices.Contains(events.Types, evt) {
				return fmt.Errorf("config.webhooks.events: unknown event type %q", evt)
			}
		}
	}
	return nil
}

// Location is the calendar used to bucket trend periods.
func (c *Config) Location() (*time.Location, error) {
	switch c.Reports.Timezone {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Reports.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config.reports.timezone: %w", err)
	}
	return loc, nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing keys keep
// their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /api
  cors_origins: ["*"]
  read_timeout: 15s
  write_timeout: 30s

storage:
  path: ""

logging:
  level: info
  format: text

metrics:
  enabled: true
  path: /metrics
  namespace: founderaudit

reports:
  timezone: Local
  cache_size: 64
  default_period: week

webhooks:
  url: ""
  events: [audit.submitted]
  timeout: 10s
  max_elapsed: 2m
  poll_interval: 2s
`
