package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type validator struct {
	problems []string
}

func (v *validator) errorf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) result() error {
	if len(v.problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration:\n  - " + strings.Join(v.problems, "\n  - "))
}

// Validate checks the configuration for problems that would make a run
// fail later. All problems are reported at once.
func (c *Config) Validate() error {
	v := &validator{}

	if c.Workspace == "" {
		v.errorf("workspace must not be empty")
	}
	if len(c.Sources) == 0 {
		v.errorf("at least one source is required")
	}

	seen := make(map[string]int, len(c.Sources))
	for i, s := range c.Sources {
		c.validateSource(v, i, s)
		if prev, dup := seen[s.Name]; dup && s.Name != "" {
			v.errorf("sources[%d]: name %q already used by sources[%d]", i, s.Name, prev)
		} else {
			seen[s.Name] = i
		}
	}

	c.validateSync(v)
	c.validateDaemon(v)

	return v.result()
}

func (c *Config) validateSource(v *validator, i int, s Source) {
	switch {
	case s.Name == "":
		v.errorf("sources[%d]: name must not be empty", i)
	case s.Name == "." || s.Name == "..":
		v.errorf("sources[%d]: name %q is reserved", i, s.Name)
	case strings.HasPrefix(s.Name, "."):
		v.errorf("sources[%d]: name %q must not start with a dot", i, s.Name)
	case strings.ContainsAny(s.Name, `/\`):
		v.errorf("sources[%d]: name %q must not contain path separators", i, s.Name)
	}

	if strings.TrimSpace(s.Remote) == "" {
		v.errorf("sources[%d]: remote must not be empty", i)
	}

	switch s.BranchPolicy {
	case "", BranchPolicyTrackCurrent, BranchPolicyRemoteDefault:
	default:
		v.errorf("sources[%d]: unknown branch_policy %q (want %s or %s)",
			i, s.BranchPolicy, BranchPolicyTrackCurrent, BranchPolicyRemoteDefault)
	}

	if err := s.Auth.validate(); err != nil {
		v.errorf("sources[%d]: auth: %v", i, err)
	}
}

func (c *Config) validateSync(v *validator) {
	if _, err := NormalizeRetryBackoff(string(c.Sync.RetryBackoff)); err != nil {
		v.errorf("sync: %v", err)
	}
	if _, err := c.Sync.RetryInitial(); err != nil {
		v.errorf("sync: %v", err)
	}
	if _, err := c.Sync.RetryMax(); err != nil {
		v.errorf("sync: %v", err)
	}
}

func (c *Config) validateDaemon(v *validator) {
	if d, err := time.ParseDuration(c.Daemon.Interval); err != nil {
		v.errorf("daemon: interval: %v", err)
	} else if d < time.Second {
		v.errorf("daemon: interval %s is below the 1s minimum", c.Daemon.Interval)
	}
	if c.Daemon.Events.Enabled && c.Daemon.Events.URL == "" {
		v.errorf("daemon: events: url is required when events are enabled")
	}
}

// IntervalDuration returns the parsed daemon interval. Validate must
// have accepted the configuration first.
func (d DaemonConfig) IntervalDuration() time.Duration {
	v, err := time.ParseDuration(d.Interval)
	if err != nil {
		return 10 * time.Minute
	}
	return v
}
