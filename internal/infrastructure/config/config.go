package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Upload ordering policies.
const (
	OrderingUnordered = "unordered"
	OrderingPerPath   = "per-path"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Remote    RemoteConfig    `yaml:"remote" toml:"remote"`
	Workspace WorkspaceConfig `yaml:"workspace" toml:"workspace"`
	Sync      SyncConfig      `yaml:"sync" toml:"sync"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port" toml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host" toml:"host"`
}

// RemoteConfig holds the remote session store and catalog settings.
type RemoteConfig struct {
	BaseURL        string  `envconfig:"REMOTE_URL" default:"http://localhost:5000/" yaml:"base_url" toml:"base_url"`
	CatalogURL     string  `envconfig:"CATALOG_URL" default:"https://api.planning.domains/json/classical/" yaml:"catalog_url" toml:"catalog_url"`
	TimeoutSeconds int     `envconfig:"REMOTE_TIMEOUT_SECONDS" default:"30" yaml:"timeout_seconds" toml:"timeout_seconds"`
	RetryMax       int     `envconfig:"REMOTE_RETRY_MAX" default:"0" yaml:"retry_max" toml:"retry_max"`
	RateLimit      float64 `envconfig:"REMOTE_RATE_LIMIT" default:"0" yaml:"rate_limit" toml:"rate_limit"`
	UserAgent      string  `envconfig:"REMOTE_USER_AGENT" default:"sessionsync/1.0" yaml:"user_agent" toml:"user_agent"`
}

// Timeout returns the per-request timeout.
func (r RemoteConfig) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// WorkspaceConfig holds the virtual workspace layout.
type WorkspaceConfig struct {
	Root       string `envconfig:"WORKSPACE_ROOT" default:"/session" yaml:"root" toml:"root"`
	FolderName string `envconfig:"WORKSPACE_FOLDER_NAME" default:"Planning.domains Session" yaml:"folder_name" toml:"folder_name"`
	MirrorDir  string `envconfig:"WORKSPACE_MIRROR_DIR" yaml:"mirror_dir" toml:"mirror_dir"`
}

// SyncConfig holds upload dispatch settings.
type SyncConfig struct {
	Ordering         string `envconfig:"SYNC_ORDERING" default:"unordered" yaml:"ordering" toml:"ordering"`
	FetchConcurrency int    `envconfig:"SYNC_FETCH_CONCURRENCY" default:"0" yaml:"fetch_concurrency" toml:"fetch_concurrency"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development" toml:"development"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled" toml:"enabled"`
}

// Load loads configuration from environment variables.
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

// LoadFile loads environment configuration and then overlays the keys present
// in the YAML or TOML file at path.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks values envconfig cannot constrain.
func (c *Config) Validate() error {
	switch c.Sync.Ordering {
	case OrderingUnordered, OrderingPerPath:
	default:
		return fmt.Errorf("invalid sync ordering %q (want %s or %s)", c.Sync.Ordering, OrderingUnordered, OrderingPerPath)
	}
	if !strings.HasPrefix(c.Workspace.Root, "/") || c.Workspace.Root == "/" {
		return fmt.Errorf("workspace root must be an absolute, non-root path: %q", c.Workspace.Root)
	}
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote base URL is required")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Remote: RemoteConfig{
			BaseURL:        "http://localhost:5000/",
			CatalogURL:     "https://api.planning.domains/json/classical/",
			TimeoutSeconds: 30,
			UserAgent:      "sessionsync/1.0",
		},
		Workspace: WorkspaceConfig{
			Root:       "/session",
			FolderName: "Planning.domains Session",
		},
		Sync: SyncConfig{
			Ordering: OrderingUnordered,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
