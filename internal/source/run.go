package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/gitsource/internal/config"
	"git.home.luguber.info/inful/gitsource/internal/gitsync"
	"git.home.luguber.info/inful/gitsource/internal/graph"
	"git.home.luguber.info/inful/gitsource/internal/logfields"
)

// Run sources every configured source with bounded parallelism and
// returns the run summary. Per-source failures are reported in the
// summary, not as the returned error; the error covers run-level
// problems such as an uncreatable workspace.
func (s *Sourcer) Run(ctx context.Context) (*Summary, error) {
	if err := os.MkdirAll(s.cfg.Workspace, 0o750); err != nil {
		return nil, fmt.Errorf("ensure workspace: %w", err)
	}

	summary := &Summary{
		RunID:   uuid.New(),
		Started: time.Now(),
		Total:   len(s.cfg.Sources),
	}
	if summary.Total == 0 {
		return summary, nil
	}

	concurrency := s.cfg.Sync.Concurrency
	if concurrency > summary.Total {
		concurrency = summary.Total
	}
	if concurrency < 1 {
		concurrency = 1
	}
	s.rec.SetSourceConcurrency(concurrency)

	slog.Info("sourcing run started",
		logfields.RunID(summary.RunID.String()),
		slog.Int("sources", summary.Total),
		slog.Int("concurrency", concurrency))

	tasks := make(chan config.Source)
	var wg sync.WaitGroup
	var mu sync.Mutex
	worker := func() {
		defer wg.Done()
		for src := range tasks {
			select {
			case <-ctx.Done():
				return
			default:
			}
			res := s.syncOne(ctx, src)
			mu.Lock()
			summary.Results = append(summary.Results, *res)
			mu.Unlock()
		}
	}
	wg.Add(concurrency)
	for range concurrency {
		go worker()
	}

feed:
	for _, src := range s.cfg.Sources {
		select {
		case <-ctx.Done():
			break feed
		case tasks <- src:
		}
	}
	close(tasks)
	wg.Wait()

	summary.Canceled = ctx.Err() != nil
	summary.Duration = time.Since(summary.Started)
	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].Source < summary.Results[j].Source
	})

	outcome := summary.Outcome()
	s.rec.ObserveRunDuration(summary.Duration)
	s.rec.IncRunOutcome(outcome)
	if ms, ok := s.store.(*graph.MemoryStore); ok {
		s.rec.SetGraphNodes(ms.Len())
	}

	slog.Info("sourcing run finished",
		logfields.RunID(summary.RunID.String()),
		slog.String("outcome", outcome),
		logfields.Nodes(summary.Files()),
		logfields.DurationMS(float64(summary.Duration.Milliseconds())))

	return summary, nil
}

// RunSource sources a single named source. Used by the CLI and by the
// daemon's event bridge for targeted refreshes.
func (s *Sourcer) RunSource(ctx context.Context, name string) (*Result, error) {
	src, ok := s.cfg.SourceByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}
	if err := os.MkdirAll(s.cfg.Workspace, 0o750); err != nil {
		return nil, fmt.Errorf("ensure workspace: %w", err)
	}
	return s.syncOne(ctx, src), nil
}

// SyncSource clones or refreshes the checkout of one named source
// without registering graph nodes. Backs the sync CLI command.
func (s *Sourcer) SyncSource(ctx context.Context, name string) (*gitsync.Checkout, error) {
	src, ok := s.cfg.SourceByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}
	if err := os.MkdirAll(s.cfg.Workspace, 0o750); err != nil {
		return nil, fmt.Errorf("ensure workspace: %w", err)
	}

	dir := src.Dir(s.cfg.Workspace)
	mu := s.locks.forPath(dir)
	mu.Lock()
	defer mu.Unlock()

	fl, err := lockCheckout(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = fl.Unlock() }()

	return s.syncTarget(ctx, src, dir)
}
