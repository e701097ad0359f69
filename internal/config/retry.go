package config

import (
	"fmt"
	"strings"
	"time"
)

// RetryBackoffMode selects how the delay between sync retries grows.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// NormalizeRetryBackoff maps user input to a known backoff mode.
// Unknown values are rejected rather than silently coerced.
func NormalizeRetryBackoff(value string) (RetryBackoffMode, error) {
	switch RetryBackoffMode(strings.ToLower(strings.TrimSpace(value))) {
	case "", RetryBackoffExponential:
		return RetryBackoffExponential, nil
	case RetryBackoffFixed:
		return RetryBackoffFixed, nil
	case RetryBackoffLinear:
		return RetryBackoffLinear, nil
	default:
		return "", fmt.Errorf("unknown retry backoff %q (want fixed, linear or exponential)", value)
	}
}

// RetryInitial returns the parsed initial retry delay.
func (s SyncConfig) RetryInitial() (time.Duration, error) {
	return parseDelay("retry_initial_delay", s.RetryInitialDelay)
}

// RetryMax returns the parsed retry delay ceiling.
func (s SyncConfig) RetryMax() (time.Duration, error) {
	return parseDelay("retry_max_delay", s.RetryMaxDelay)
}

func parseDelay(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", field)
	}
	return d, nil
}
