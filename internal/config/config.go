// Package config loads the waypost daemon configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/waypost/internal/connectivity"
	"github.com/roach88/waypost/internal/mutation"
	"github.com/roach88/waypost/internal/syncer"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Duration is a time.Duration written as a Go duration string ("30s", "1m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string", node.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root of waypost.yaml.
type Config struct {
	Store        StoreConfig        `yaml:"store"`
	Remote       RemoteConfig       `yaml:"remote"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Queue        QueueConfig        `yaml:"queue"`
	Sync         SyncConfig         `yaml:"sync"`
	Navigation   NavigationConfig   `yaml:"navigation"`
	API          APIConfig          `yaml:"api"`
}

// StoreConfig selects where mutation records live. Flow snapshots always go
// to the SQLite file at Path.
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures store.RedisStore.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
}

// RemoteConfig configures the HTTP mutation executor.
type RemoteConfig struct {
	BaseURL string            `yaml:"base_url"`
	Headers map[string]string `yaml:"headers"`
}

// ConnectivityConfig configures the health prober. An empty ProbeURL with
// Offline false means the daemon assumes it is always connected.
type ConnectivityConfig struct {
	ProbeURL      string   `yaml:"probe_url"`
	ProbeInterval Duration `yaml:"probe_interval"`
	MaxBackoff    Duration `yaml:"max_backoff"`
	Offline       bool     `yaml:"offline"`
}

// QueueConfig tunes the mutation queue loops.
type QueueConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
	SyncInterval Duration `yaml:"sync_interval"`
	// RateLimit caps dispatches per second. Zero disables the limit.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// SyncConfig configures conflict handling.
type SyncConfig struct {
	Resolution      string   `yaml:"resolution"`
	ResolveInterval Duration `yaml:"resolve_interval"`
}

// NavigationConfig points at the CUE app manifest.
type NavigationConfig struct {
	Manifest     string   `yaml:"manifest"`
	Entitlements []string `yaml:"entitlements"`
}

// APIConfig configures the admin HTTP server.
type APIConfig struct {
	Listen    string `yaml:"listen"`
	Namespace string `yaml:"metrics_namespace"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config, rejecting unknown fields, then applies
// defaults and validates. Empty input yields Default().
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = BackendSQLite
	}
	if c.Store.Path == "" {
		c.Store.Path = "waypost.db"
	}
	if c.Store.Redis.Addr == "" {
		c.Store.Redis.Addr = "localhost:6379"
	}
	if c.Connectivity.ProbeInterval == 0 {
		c.Connectivity.ProbeInterval = Duration(connectivity.DefaultProbeInterval)
	}
	if c.Connectivity.MaxBackoff == 0 {
		c.Connectivity.MaxBackoff = Duration(connectivity.DefaultMaxBackoff)
	}
	if c.Queue.PollInterval == 0 {
		c.Queue.PollInterval = Duration(mutation.DefaultPollInterval)
	}
	if c.Queue.SyncInterval == 0 {
		c.Queue.SyncInterval = Duration(mutation.DefaultSyncInterval)
	}
	if c.Queue.RateLimit > 0 && c.Queue.Burst == 0 {
		c.Queue.Burst = 1
	}
	if c.Sync.Resolution == "" {
		c.Sync.Resolution = string(syncer.ResolutionManual)
	}
	if c.Sync.ResolveInterval == 0 {
		c.Sync.ResolveInterval = Duration(syncer.DefaultResolveInterval)
	}
	if c.API.Listen == "" {
		c.API.Listen = "127.0.0.1:7070"
	}
	if c.API.Namespace == "" {
		c.API.Namespace = "waypost"
	}
}

// Validate checks values that defaults cannot fix.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendSQLite, BackendRedis, c.Store.Backend)
	}
	if c.Store.Redis.DB < 0 {
		return fmt.Errorf("store.redis.db must be non-negative")
	}
	if c.Queue.RateLimit < 0 {
		return fmt.Errorf("queue.rate_limit must be non-negative")
	}
	if c.Queue.Burst < 0 {
		return fmt.Errorf("queue.burst must be non-negative")
	}
	for name, d := range map[string]Duration{
		"connectivity.probe_interval": c.Connectivity.ProbeInterval,
		"connectivity.max_backoff":    c.Connectivity.MaxBackoff,
		"queue.poll_interval":         c.Queue.PollInterval,
		"queue.sync_interval":         c.Queue.SyncInterval,
		"sync.resolve_interval":       c.Sync.ResolveInterval,
	} {
		if d < 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if _, err := syncer.ParseResolution(c.Sync.Resolution); err != nil {
		return fmt.Errorf("sync.resolution: %w", err)
	}
	return nil
}

// Resolution returns the parsed conflict policy. Validate has already
// checked it.
func (c *Config) Resolution() syncer.Resolution {
	r, _ := syncer.ParseResolution(c.Sync.Resolution)
	return r
}
