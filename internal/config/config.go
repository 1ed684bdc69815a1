package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment override, e.g.
// KENTETL_WORKER_COUNT -> worker_count.
const EnvPrefix = "KENTETL_"

type Config struct {
	Port string `koanf:"port"`

	// Auth
	APIKey string `koanf:"api_key"`

	// Storage
	DatabasePath string `koanf:"database_path"`
	RawDir       string `koanf:"raw_dir"`
	OutputDir    string `koanf:"output_dir"`

	// Worker pool
	WorkerCount        int `koanf:"worker_count"`
	MaxQueueSize       int `koanf:"max_queue_size"`
	MaxConcurrentFetch int `koanf:"max_concurrent_fetch"`

	// Upload limits
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `koanf:"job_ttl"`

	// Fetching
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
	FetchRate    float64       `koanf:"fetch_rate"` // requests per second

	// Parsing
	MaxDepth       int    `koanf:"max_depth"`
	DefaultSection string `koanf:"default_section"`

	// Logging
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

// Load reads configuration from an optional YAML file, then applies
// KENTETL_* environment overrides. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = "8090"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "kent_repertory.db"
	}
	if c.RawDir == "" {
		c.RawDir = "data/raw"
	}
	if c.OutputDir == "" {
		c.OutputDir = "data/processed"
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 100
	}
	if c.MaxConcurrentFetch <= 0 {
		c.MaxConcurrentFetch = 4
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 10 << 20 // 10MB
	}
	if c.JobTTL <= 0 {
		c.JobTTL = 1 * time.Hour
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.FetchRate <= 0 {
		c.FetchRate = 2
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 32
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
}

// Validate checks the settings needed to serve the HTTP API.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("KENTETL_API_KEY is required")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	return nil
}
