package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.home.luguber.info/inful/gitsource/internal/config"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != config.RetryBackoffExponential {
		t.Fatalf("expected exponential default mode got %s", p.Mode)
	}
	if p.Initial != time.Second {
		t.Fatalf("expected initial 1s got %v", p.Initial)
	}
	if p.Max != 30*time.Second {
		t.Fatalf("expected max 30s got %v", p.Max)
	}
	if p.MaxRetries != 2 {
		t.Fatalf("expected max retries 2 got %d", p.MaxRetries)
	}
}

func TestNewPolicyClampsInitial(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 5)
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Max != 2*time.Second {
		t.Fatalf("expected max 2s got %v", p.Max)
	}
	if p.Mode != config.RetryBackoffFixed {
		t.Fatalf("expected fixed mode got %s", p.Mode)
	}
	if p.MaxRetries != 5 {
		t.Fatalf("expected maxRetries 5 got %d", p.MaxRetries)
	}
}

func TestUnknownModeFallsBack(t *testing.T) {
	p := NewPolicy("weird", 250*time.Millisecond, 500*time.Millisecond, 1)
	if p.Mode != config.RetryBackoffExponential {
		t.Fatalf("unknown mode should fall back to exponential got %s", p.Mode)
	}
}

func TestDelayModes(t *testing.T) {
	fixed := NewPolicy(config.RetryBackoffFixed, 100*time.Millisecond, 500*time.Millisecond, 3)
	for i := 1; i <= 3; i++ {
		if d := fixed.Delay(i); d != 100*time.Millisecond {
			t.Fatalf("fixed attempt %d expected 100ms got %v", i, d)
		}
	}

	linear := NewPolicy(config.RetryBackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5)
	linearCases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 250 * time.Millisecond},
		{4, 250 * time.Millisecond},
	}
	for _, c := range linearCases {
		if got := linear.Delay(c.attempt); got != c.want {
			t.Fatalf("linear attempt %d expected %v got %v", c.attempt, c.want, got)
		}
	}

	exp := NewPolicy(config.RetryBackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5)
	expCases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 50 * time.Millisecond},
		{2, 100 * time.Millisecond},
		{3, 160 * time.Millisecond},
		{4, 160 * time.Millisecond},
	}
	for _, c := range expCases {
		if got := exp.Delay(c.attempt); got != c.want {
			t.Fatalf("exp attempt %d expected %v got %v", c.attempt, c.want, got)
		}
	}
}

func TestDelayNonPositiveAttempts(t *testing.T) {
	p := NewPolicy(config.RetryBackoffLinear, 10*time.Millisecond, 20*time.Millisecond, 1)
	if d := p.Delay(0); d != 0 {
		t.Fatalf("attempt 0 expected 0 got %v", d)
	}
	if d := p.Delay(-1); d != 0 {
		t.Fatalf("attempt -1 expected 0 got %v", d)
	}
}

func TestValidate(t *testing.T) {
	bad := []Policy{
		{Mode: config.RetryBackoffLinear, Initial: 0, Max: time.Second, MaxRetries: 1},
		{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 0, MaxRetries: 1},
		{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 2 * time.Second, MaxRetries: -1},
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Fatalf("policy %d: expected validation error", i)
		}
	}
	good := Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 2 * time.Second, MaxRetries: 0}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	p, err := FromConfig(config.SyncConfig{
		MaxRetries:        4,
		RetryBackoff:      config.RetryBackoffLinear,
		RetryInitialDelay: "200ms",
		RetryMaxDelay:     "2s",
	})
	if err != nil {
		t.Fatalf("FromConfig() error: %v", err)
	}
	if p.MaxRetries != 4 || p.Mode != config.RetryBackoffLinear {
		t.Fatalf("unexpected policy %+v", p)
	}
	if p.Initial != 200*time.Millisecond || p.Max != 2*time.Second {
		t.Fatalf("unexpected delays %+v", p)
	}

	if _, err := FromConfig(config.SyncConfig{RetryInitialDelay: "potato", RetryMaxDelay: "1s"}); err == nil {
		t.Fatal("expected error for bad initial delay")
	}
}

func TestFromConfigZeroValue(t *testing.T) {
	p, err := FromConfig(config.SyncConfig{})
	if err != nil {
		t.Fatalf("FromConfig() error: %v", err)
	}
	if p.MaxRetries != 0 {
		t.Fatalf("zero config expected 0 retries got %d", p.MaxRetries)
	}
	if p.Initial != time.Second || p.Max != 30*time.Second {
		t.Fatalf("empty delays should keep defaults got %+v", p)
	}
}

func TestFromConfigNegativeRetriesDisables(t *testing.T) {
	p, err := FromConfig(config.SyncConfig{MaxRetries: -1})
	if err != nil {
		t.Fatalf("FromConfig() error: %v", err)
	}
	if p.MaxRetries != 0 {
		t.Fatalf("negative max_retries should disable retries got %d", p.MaxRetries)
	}
}

func TestRunStopsOnSuccess(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 5)
	calls := 0
	err := Run(context.Background(), p, nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls got %d", calls)
	}
}

func TestRunExhaustsBudget(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2)
	calls := 0
	wantErr := errors.New("still broken")
	err := Run(context.Background(), p, nil, func(context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run() error = %v, want %v", err, wantErr)
	}
	// first attempt plus two retries
	if calls != 3 {
		t.Fatalf("expected 3 calls got %d", calls)
	}
}

func TestRunSkipsNonRetryable(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 5)
	calls := 0
	fatal := errors.New("permanent")
	err := Run(context.Background(), p, func(err error) bool { return !errors.Is(err, fatal) }, func(context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("Run() error = %v, want %v", err, fatal)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call got %d", calls)
	}
}

func TestRunHonorsContext(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Minute, time.Minute, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, p, nil, func(context.Context) error {
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}
