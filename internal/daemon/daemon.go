// Package daemon runs gitsource continuously: periodic sourcing runs on
// a schedule, live configuration reloads, optional NATS-triggered
// refreshes, and an HTTP endpoint for health, status and metrics.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/gitsource/internal/config"
	"git.home.luguber.info/inful/gitsource/internal/graph"
	"git.home.luguber.info/inful/gitsource/internal/logfields"
	"git.home.luguber.info/inful/gitsource/internal/metrics"
	"git.home.luguber.info/inful/gitsource/internal/runstore"
	"git.home.luguber.info/inful/gitsource/internal/source"
)

// Status is the daemon lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

// Daemon keeps the workspace checkouts and the content graph fresh
// between builds.
type Daemon struct {
	mu         sync.RWMutex
	cfg        *config.Config
	configPath string
	sourcer    *source.Sourcer

	store    *graph.MemoryStore
	runs     *runstore.Store
	rec      metrics.Recorder
	registry *prom.Registry

	scheduler *Scheduler
	watcher   *ConfigWatcher
	events    *EventBridge
	http      *HTTPServer

	status    atomic.Value // Status
	startTime time.Time
	lastRun   atomic.Pointer[source.Summary]

	// runCtx outlives the Start context so scheduled and event-driven
	// runs share one cancellation scope, cut in Stop.
	runCtx    context.Context
	runCancel context.CancelFunc
	runMu     sync.Mutex
}

// New builds a daemon from a loaded configuration. configPath enables
// live reloads when non-empty.
func New(cfg *config.Config, configPath string) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon: nil config")
	}

	d := &Daemon{
		cfg:        cfg,
		configPath: configPath,
		store:      graph.NewMemoryStore(),
	}
	d.status.Store(StatusStopped)

	dataDir := cfg.StateDir()
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	runs, err := runstore.Open(filepath.Join(dataDir, "runs.db"))
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	d.runs = runs

	if cfg.Metrics.Enabled {
		d.registry = prom.NewRegistry()
		d.rec = metrics.NewPrometheusRecorder(d.registry)
	} else {
		d.rec = metrics.NoopRecorder{}
	}

	d.sourcer, err = source.New(cfg, d.store, source.Options{Runs: runs, Recorder: d.rec})
	if err != nil {
		runs.Close()
		return nil, err
	}

	d.scheduler, err = NewScheduler()
	if err != nil {
		runs.Close()
		return nil, err
	}
	d.scheduler.SetRunner(d.runScheduled)

	if configPath != "" {
		d.watcher, err = NewConfigWatcher(configPath, d)
		if err != nil {
			runs.Close()
			return nil, err
		}
	}

	if cfg.Daemon.Events.Enabled {
		d.events = NewEventBridge(cfg.Daemon.Events, d)
	}

	d.http = NewHTTPServer(d, cfg.Daemon.Listen)

	return d, nil
}

// Start brings up every component and blocks until ctx is cancelled.
// Call Stop afterwards to release resources.
func (d *Daemon) Start(ctx context.Context) error {
	if d.GetStatus() != StatusStopped {
		return fmt.Errorf("daemon is not stopped: %s", d.GetStatus())
	}
	d.status.Store(StatusStarting)
	d.startTime = time.Now()
	d.runCtx, d.runCancel = context.WithCancel(context.Background())

	if err := d.http.Start(ctx); err != nil {
		d.status.Store(StatusStopped)
		return err
	}

	if d.events != nil {
		if err := d.events.Start(ctx); err != nil {
			_ = d.http.Stop(ctx)
			d.status.Store(StatusStopped)
			return err
		}
	}

	if err := d.scheduler.ScheduleRuns(d.Config().Daemon.IntervalDuration()); err != nil {
		d.shutdownComponents(ctx)
		d.status.Store(StatusStopped)
		return err
	}
	d.scheduler.Start(ctx)

	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			slog.Error("could not start config watcher", logfields.Error(err))
		}
	}

	d.status.Store(StatusRunning)
	slog.Info("daemon started",
		slog.Int("sources", len(d.Config().Sources)),
		slog.String("listen", d.http.Addr()),
		slog.Duration("interval", d.Config().Daemon.IntervalDuration()))

	<-ctx.Done()
	d.status.Store(StatusStopping)
	slog.Info("daemon stopping")
	return nil
}

// Stop shuts down every component in reverse start order.
func (d *Daemon) Stop(ctx context.Context) error {
	status := d.GetStatus()
	if status == StatusStopped {
		return nil
	}
	d.status.Store(StatusStopping)

	if d.runCancel != nil {
		d.runCancel()
	}
	d.shutdownComponents(ctx)

	if err := d.runs.Close(); err != nil {
		slog.Error("could not close run store", logfields.Error(err))
	}

	d.status.Store(StatusStopped)
	slog.Info("daemon stopped", slog.Duration("uptime", time.Since(d.startTime)))
	return nil
}

func (d *Daemon) shutdownComponents(ctx context.Context) {
	if d.watcher != nil {
		if err := d.watcher.Stop(ctx); err != nil {
			slog.Error("could not stop config watcher", logfields.Error(err))
		}
	}
	if err := d.scheduler.Stop(ctx); err != nil {
		slog.Error("could not stop scheduler", logfields.Error(err))
	}
	if d.events != nil {
		if err := d.events.Stop(ctx); err != nil {
			slog.Error("could not stop event bridge", logfields.Error(err))
		}
	}
	if err := d.http.Stop(ctx); err != nil {
		slog.Error("could not stop http server", logfields.Error(err))
	}
}

// GetStatus returns the current lifecycle state.
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusStopped
	}
	return status
}

// Config returns the active configuration. Reloads swap it.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// LastRun returns the most recent run summary, nil before the first run.
func (d *Daemon) LastRun() *source.Summary {
	return d.lastRun.Load()
}

// runScheduled executes one full sourcing run. Driven by the scheduler
// and by refresh events that do not name a source.
func (d *Daemon) runScheduled() {
	summary, err := d.RunAll(d.runCtx)
	if err != nil {
		slog.Error("scheduled run failed", logfields.Error(err))
		return
	}
	if d.events != nil {
		d.events.PublishRunCompleted(summary)
	}
}

// RunAll executes one sourcing run over every configured source.
func (d *Daemon) RunAll(ctx context.Context) (*source.Summary, error) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.RLock()
	sourcer := d.sourcer
	d.mu.RUnlock()

	summary, err := sourcer.Run(ctx)
	if err != nil {
		return nil, err
	}
	d.lastRun.Store(summary)
	return summary, nil
}

// RefreshSource re-sources one named source, for event-driven updates.
func (d *Daemon) RefreshSource(ctx context.Context, name string) (*source.Result, error) {
	d.mu.RLock()
	sourcer := d.sourcer
	d.mu.RUnlock()
	return sourcer.RunSource(ctx, name)
}

// ReloadConfig swaps in a new configuration. The graph store, run
// store and recorder are kept; the source set and schedule follow the
// new file. Invalid source definitions reject the reload.
func (d *Daemon) ReloadConfig(ctx context.Context, cfg *config.Config) error {
	sourcer, err := source.New(cfg, d.store, source.Options{Runs: d.runs, Recorder: d.rec})
	if err != nil {
		return fmt.Errorf("build sourcer: %w", err)
	}

	d.mu.Lock()
	previous := d.cfg
	d.cfg = cfg
	d.sourcer = sourcer
	d.mu.Unlock()

	if previous.Daemon.IntervalDuration() != cfg.Daemon.IntervalDuration() {
		if err := d.scheduler.Reschedule(cfg.Daemon.IntervalDuration()); err != nil {
			slog.Error("could not reschedule runs", logfields.Error(err))
		} else {
			slog.Info("run interval updated", slog.Duration("interval", cfg.Daemon.IntervalDuration()))
		}
	}

	slog.Info("configuration reloaded",
		slog.Int("sources", len(cfg.Sources)),
		slog.Int("previous_sources", len(previous.Sources)))
	return nil
}

// metricsHandler returns the Prometheus scrape handler, nil when
// metrics are disabled.
func (d *Daemon) metricsHandler() http.Handler {
	if d.registry == nil {
		return nil
	}
	return metrics.HTTPHandler(d.registry)
}
