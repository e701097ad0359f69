package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/gitsource/internal/config"
	"git.home.luguber.info/inful/gitsource/internal/daemon"
	"git.home.luguber.info/inful/gitsource/internal/graph"
	"git.home.luguber.info/inful/gitsource/internal/runstore"
	"git.home.luguber.info/inful/gitsource/internal/source"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"gitsource.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Source struct {
		Out string `short:"o" help:"Write the resulting node graph as JSON (- for stdout)"`
	} `cmd:"" help:"Sync all sources and register their files as graph nodes"`

	Sync struct {
		Name string `arg:"" optional:"" help:"Source to synchronize (default: all)"`
	} `cmd:"" help:"Clone or refresh checkouts without registering nodes"`

	Runs struct {
		Source string `short:"s" help:"Only show runs of this source"`
		Limit  int    `short:"n" help:"Maximum runs to show" default:"20"`
	} `cmd:"" help:"Show recent run history"`

	Daemon struct{} `cmd:"" help:"Run continuously with scheduled syncs and an HTTP status endpoint"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	// Logs go to stderr so `source --out -` can pipe the graph.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "source":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		if err := runSource(cfg, CLI.Source.Out); err != nil {
			slog.Error("Source run failed", "error", err)
			os.Exit(1)
		}
	case "sync", "sync <name>":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		if err := runSync(cfg, CLI.Sync.Name); err != nil {
			slog.Error("Sync failed", "error", err)
			os.Exit(1)
		}
	case "runs":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		if err := runRuns(cfg, CLI.Runs.Source, CLI.Runs.Limit); err != nil {
			slog.Error("Run history failed", "error", err)
			os.Exit(1)
		}
	case "daemon":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		if err := runDaemon(cfg); err != nil {
			slog.Error("Daemon failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := runInit(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
	}
}

func runSource(cfg *config.Config, outPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.StateDir(), 0o750); err != nil {
		return fmt.Errorf("ensure state dir: %w", err)
	}
	runs, err := runstore.Open(filepath.Join(cfg.StateDir(), "runs.db"))
	if err != nil {
		return err
	}
	defer func() {
		if err := runs.Close(); err != nil {
			slog.Warn("Failed to close run store", "error", err)
		}
	}()

	store := graph.NewMemoryStore()
	sourcer, err := source.New(cfg, store, source.Options{Runs: runs})
	if err != nil {
		return err
	}

	slog.Info("Starting sourcing run",
		"sources", len(cfg.Sources),
		"workspace", cfg.Workspace)

	summary, err := sourcer.Run(ctx)
	if err != nil {
		return err
	}

	for _, res := range summary.Failed() {
		slog.Error("Source failed", "source", res.Source, "error", res.Err)
	}
	slog.Info("Sourcing run completed",
		"outcome", summary.Outcome(),
		"sources", summary.Total,
		"files", summary.Files(),
		"duration", summary.Duration.Round(time.Millisecond))

	if outPath != "" {
		if err := writeGraph(ctx, store, outPath); err != nil {
			return err
		}
	}

	if failed := len(summary.Failed()); failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, summary.Total)
	}
	return nil
}

func runSync(cfg *config.Config, name string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sourcer, err := source.New(cfg, graph.NewMemoryStore(), source.Options{})
	if err != nil {
		return err
	}

	names := make([]string, 0, len(cfg.Sources))
	if name != "" {
		if _, ok := cfg.SourceByName(name); !ok {
			return fmt.Errorf("unknown source %q", name)
		}
		names = append(names, name)
	} else {
		for _, src := range cfg.Sources {
			names = append(names, src.Name)
		}
	}

	failed := 0
	for _, n := range names {
		co, err := sourcer.SyncSource(ctx, n)
		if err != nil {
			failed++
			slog.Error("Sync failed", "source", n, "error", err)
			continue
		}
		slog.Info("Source synchronized",
			"source", n,
			"path", co.Path,
			"branch", co.Branch,
			"commit", shortCommit(co.Commit),
			"cloned", co.Cloned)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(names))
	}
	return nil
}

func runRuns(cfg *config.Config, sourceName string, limit int) error {
	dbPath := filepath.Join(cfg.StateDir(), "runs.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		slog.Info("No recorded runs", "db", dbPath)
		return nil
	}
	runs, err := runstore.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := runs.Close(); err != nil {
			slog.Warn("Failed to close run store", "error", err)
		}
	}()

	ctx := context.Background()
	var rows []runstore.Run
	if sourceName != "" {
		rows, err = runs.BySource(ctx, sourceName, limit)
	} else {
		rows, err = runs.Recent(ctx, limit)
	}
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		slog.Info("No recorded runs", "db", dbPath)
		return nil
	}
	for _, run := range rows {
		attrs := []any{
			"started", run.StartedAt.Format(time.RFC3339),
			"source", run.Source,
			"outcome", run.Outcome,
			"files", run.Files,
			"duration", run.Duration.Round(time.Millisecond),
		}
		if run.Commit != "" {
			attrs = append(attrs, "commit", shortCommit(run.Commit))
		}
		if run.Error != "" {
			attrs = append(attrs, "error", run.Error)
		}
		slog.Info("Recorded run", attrs...)
	}
	return nil
}

func runDaemon(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, CLI.Config)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.Start(ctx)
	}()

	slog.Info("Daemon started, waiting for shutdown signal...")

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("daemon error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	slog.Info("Daemon stopped successfully")
	return nil
}

func runInit(configPath string, force bool) error {
	slog.Info("Initializing configuration", "path", configPath, "force", force)
	return config.WriteStarter(configPath, force)
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}
