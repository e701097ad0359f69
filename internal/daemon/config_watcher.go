package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/gitsource/internal/config"
	"git.home.luguber.info/inful/gitsource/internal/logfields"
)

// ConfigWatcher reloads the daemon configuration when the file changes.
type ConfigWatcher struct {
	configPath   string
	daemon       *Daemon
	watcher      *fsnotify.Watcher
	mu           sync.Mutex
	stopChan     chan struct{}
	reloadChan   chan struct{}
	debounceTime time.Duration
}

// NewConfigWatcher creates a watcher for the given configuration file.
func NewConfigWatcher(configPath string, daemon *Daemon) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	return &ConfigWatcher{
		configPath:   absPath,
		daemon:       daemon,
		watcher:      watcher,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: 2 * time.Second,
	}, nil
}

// Start begins monitoring. The directory is watched rather than the
// file itself so editors that replace the file are still seen.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	configDir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(configDir); err != nil {
		return fmt.Errorf("watch config directory %s: %w", configDir, err)
	}

	slog.Info("watching configuration", logfields.Path(cw.configPath))

	go cw.watchLoop(ctx)
	go cw.reloadLoop(ctx)
	return nil
}

// Stop ends monitoring.
func (cw *ConfigWatcher) Stop(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	select {
	case <-cw.stopChan:
	default:
		close(cw.stopChan)
	}
	if err := cw.watcher.Close(); err != nil {
		slog.Error("could not close file watcher", logfields.Error(err))
	}
	return nil
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(cw.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			switch {
			case event.Op.Has(fsnotify.Write), event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Rename):
				slog.Debug("config file changed", logfields.Path(event.Name))
				cw.triggerReload()
			case event.Op.Has(fsnotify.Remove):
				slog.Warn("config file removed", logfields.Path(event.Name))
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", logfields.Error(err))
		}
	}
}

// reloadLoop debounces change bursts into one reload.
func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return
		case <-cw.stopChan:
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return
		case <-cw.reloadChan:
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(cw.debounceTime, func() {
				if err := cw.performReload(ctx); err != nil {
					slog.Error("configuration reload failed", logfields.Error(err))
				}
			})
		}
	}
}

func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
	default:
		// Reload already pending.
	}
}

func (cw *ConfigWatcher) performReload(ctx context.Context) error {
	slog.Info("reloading configuration", logfields.Path(cw.configPath))

	cfg, err := config.Load(cw.configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cw.warnRestartOnly(cfg)

	if err := cw.daemon.ReloadConfig(ctx, cfg); err != nil {
		return fmt.Errorf("apply configuration: %w", err)
	}

	slog.Info("configuration reloaded")
	return nil
}

// warnRestartOnly flags changes a live reload cannot apply.
func (cw *ConfigWatcher) warnRestartOnly(next *config.Config) {
	current := cw.daemon.Config()
	if next.Daemon.Listen != current.Daemon.Listen {
		slog.Warn("listen address change requires a restart",
			slog.String("current", current.Daemon.Listen),
			slog.String("next", next.Daemon.Listen))
	}
	if next.Daemon.Events != current.Daemon.Events {
		slog.Warn("event bridge changes require a restart")
	}
	if next.Daemon.DataDir != current.Daemon.DataDir {
		slog.Warn("data dir change requires a restart",
			slog.String("current", current.Daemon.DataDir),
			slog.String("next", next.Daemon.DataDir))
	}
}
