package config

import (
	"os"
	"path/filepath"
)

const (
	defaultDepth       = 1
	defaultConcurrency = 4
	defaultMaxRetries  = 2
	defaultInterval    = "10m"
	defaultListen      = ":8080"

	defaultSubscribeSubject = "gitsource.refresh"
	defaultPublishSubject   = "gitsource.runs"
)

func (c *Config) applyDefaults() {
	if c.Workspace == "" {
		c.Workspace = defaultWorkspace()
	}
	if c.Sync.Depth == 0 {
		c.Sync.Depth = defaultDepth
	}
	if c.Sync.Concurrency <= 0 {
		c.Sync.Concurrency = defaultConcurrency
	}
	if c.Sync.MaxRetries == 0 {
		c.Sync.MaxRetries = defaultMaxRetries
	}
	if c.Sync.RetryBackoff == "" {
		c.Sync.RetryBackoff = RetryBackoffExponential
	}
	if c.Sync.RetryInitialDelay == "" {
		c.Sync.RetryInitialDelay = "1s"
	}
	if c.Sync.RetryMaxDelay == "" {
		c.Sync.RetryMaxDelay = "30s"
	}

	if c.Daemon.Interval == "" {
		c.Daemon.Interval = defaultInterval
	}
	if c.Daemon.Listen == "" {
		c.Daemon.Listen = defaultListen
	}
	if c.Daemon.DataDir == "" {
		c.Daemon.DataDir = filepath.Join(c.Workspace, ".state")
	}
	if c.Daemon.Events.SubscribeSubject == "" {
		c.Daemon.Events.SubscribeSubject = defaultSubscribeSubject
	}
	if c.Daemon.Events.PublishSubject == "" {
		c.Daemon.Events.PublishSubject = defaultPublishSubject
	}
}

func defaultWorkspace() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "gitsource")
	}
	return filepath.Join(os.TempDir(), "gitsource")
}
