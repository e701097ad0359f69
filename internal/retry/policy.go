// Package retry provides the backoff policy applied to transient sync
// failures. The synchronizer itself never retries; callers wrap it.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.home.luguber.info/inful/gitsource/internal/config"
)

// Policy encapsulates retry and backoff settings for transient failures.
// It is immutable after construction.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration // base delay
	Max        time.Duration // cap for growth
	MaxRetries int           // retries after the first failure
}

// DefaultPolicy returns the baseline policy (exponential, 1s initial,
// 30s cap, 2 retries).
func DefaultPolicy() Policy {
	return Policy{
		Mode:       config.RetryBackoffExponential,
		Initial:    time.Second,
		Max:        30 * time.Second,
		MaxRetries: 2,
	}
}

// NewPolicy builds a policy from raw values. Zero or invalid values fall
// back to the defaults, and initial is clamped to max.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	switch mode {
	case config.RetryBackoffFixed, config.RetryBackoffLinear, config.RetryBackoffExponential:
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// FromConfig builds a policy from the sync configuration.
func FromConfig(cfg config.SyncConfig) (Policy, error) {
	initial, err := cfg.RetryInitial()
	if err != nil {
		return Policy{}, err
	}
	maxDelay, err := cfg.RetryMax()
	if err != nil {
		return Policy{}, err
	}
	mode, err := config.NormalizeRetryBackoff(string(cfg.RetryBackoff))
	if err != nil {
		return Policy{}, err
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		// Negative disables retries entirely.
		retries = 0
	}
	return NewPolicy(mode, initial, maxDelay, retries), nil
}

// Delay returns the backoff delay before the given retry attempt
// (1-based: the first retry is attempt 1).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffLinear:
		d := time.Duration(attempt) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	default: // exponential
		d := p.Initial * (1 << (attempt - 1))
		if d > p.Max || d <= 0 {
			return p.Max
		}
		return d
	}
}

// Validate reports whether the policy can be applied at all.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}

// Run invokes fn until it succeeds, the retry budget is spent, or ctx is
// cancelled. retryable decides which errors are worth another attempt;
// nil means every error is.
func Run(ctx context.Context, p Policy, retryable func(error) bool, fn func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries {
			return err
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(p.Delay(attempt + 1)):
		}
	}
}
