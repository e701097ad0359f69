// Package config loads and validates the gitsource configuration file.
//
// Configuration is YAML with environment variable expansion. A .env file
// next to the configuration file is loaded first so that ${VAR} references
// can be satisfied without exporting anything in the shell.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for gitsource.
type Config struct {
	// Workspace is the directory that holds one checkout per source.
	Workspace string `yaml:"workspace,omitempty"`

	Sources []Source      `yaml:"sources"`
	Sync    SyncConfig    `yaml:"sync,omitempty"`
	Daemon  DaemonConfig  `yaml:"daemon,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// SyncConfig tunes how checkouts are created and refreshed.
type SyncConfig struct {
	// Depth is the clone and fetch depth. Defaults to 1. A negative
	// value disables shallow operations and fetches full history.
	Depth int `yaml:"depth,omitempty"`

	// Concurrency bounds how many sources are synchronized in parallel.
	Concurrency int `yaml:"concurrency,omitempty"`

	// MaxRetries bounds retries of transient sync failures. Defaults
	// to 2. A negative value disables retries.
	MaxRetries        int              `yaml:"max_retries,omitempty"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff,omitempty"`
	RetryInitialDelay string           `yaml:"retry_initial_delay,omitempty"`
	RetryMaxDelay     string           `yaml:"retry_max_delay,omitempty"`
}

// DaemonConfig configures the long-running refresh daemon.
type DaemonConfig struct {
	// Interval between scheduled full runs, as a Go duration string.
	Interval string `yaml:"interval,omitempty"`

	// Listen is the address for the health and metrics endpoints.
	Listen string `yaml:"listen,omitempty"`

	// DataDir holds daemon state such as the run history database.
	// Defaults to <workspace>/.state.
	DataDir string `yaml:"data_dir,omitempty"`

	Events EventsConfig `yaml:"events,omitempty"`
}

// EventsConfig wires the daemon to a NATS server. When enabled the daemon
// publishes a message after every run and triggers a run when a message
// arrives on the subscribe subject.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	URL     string `yaml:"url,omitempty"`
	// SubscribeSubject receives external "please refresh" notifications.
	SubscribeSubject string `yaml:"subscribe_subject,omitempty"`
	// PublishSubject carries run completion announcements.
	PublishSubject string `yaml:"publish_subject,omitempty"`
}

// MetricsConfig toggles Prometheus metrics collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

// Load reads, expands and validates the configuration at path.
func Load(path string) (*Config, error) {
	loadEnvFiles(filepath.Dir(path))

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// StateDir returns the directory holding local state such as the run
// history database. Defaults to <workspace>/.state.
func (c *Config) StateDir() string {
	if c.Daemon.DataDir != "" {
		return c.Daemon.DataDir
	}
	return filepath.Join(c.Workspace, ".state")
}

// SourceByName returns the source with the given name, if present.
func (c *Config) SourceByName(name string) (Source, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}
