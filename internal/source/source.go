// Package source runs the sourcing routine: synchronize every
// configured remote into the workspace, walk each checkout for matching
// files, and register remote and file nodes in the content graph.
//
// Build pipelines call Run once per build. The daemon calls it on a
// schedule and RunSource when an event names a single source. Failures
// are per source: one conflicting or unreachable remote never disturbs
// the graph entries of the others.
package source

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/gitsource/internal/config"
	"git.home.luguber.info/inful/gitsource/internal/gitsync"
	"git.home.luguber.info/inful/gitsource/internal/graph"
	"git.home.luguber.info/inful/gitsource/internal/match"
	"git.home.luguber.info/inful/gitsource/internal/metrics"
	"git.home.luguber.info/inful/gitsource/internal/retry"
	"git.home.luguber.info/inful/gitsource/internal/runstore"
)

// OutcomePartial is the run-summary outcome when some sources failed
// and some succeeded. Per-source outcomes use the runstore constants.
const OutcomePartial = "partial"

// Result is the outcome of sourcing one configured source.
type Result struct {
	Source string
	Remote string

	// Checkout is nil when the sync failed.
	Checkout *gitsync.Checkout
	// Files is the number of file nodes registered.
	Files int

	// Outcome is one of the runstore outcome constants.
	Outcome string
	Err     error

	Started  time.Time
	Duration time.Duration
}

// Summary aggregates one whole sourcing run.
type Summary struct {
	RunID   uuid.UUID
	Started time.Time
	// Total is the number of configured sources this run covered.
	Total int
	// Canceled is true when the run stopped early on context
	// cancellation; Results then misses the unstarted sources.
	Canceled bool
	Duration time.Duration
	Results  []Result
}

// Failed returns the results that did not succeed.
func (s *Summary) Failed() []Result {
	var failed []Result
	for _, r := range s.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Files returns the total file node count across successful sources.
func (s *Summary) Files() int {
	n := 0
	for _, r := range s.Results {
		n += r.Files
	}
	return n
}

// Outcome classifies the run: success, partial, failed or canceled.
func (s *Summary) Outcome() string {
	if s.Canceled {
		return runstore.OutcomeCanceled
	}
	failed := len(s.Failed())
	switch {
	case failed == 0:
		return runstore.OutcomeSuccess
	case failed == len(s.Results):
		return runstore.OutcomeFailed
	default:
		return OutcomePartial
	}
}

// Options carries the optional collaborators of a Sourcer.
type Options struct {
	// Runs receives one record per source per run when set.
	Runs *runstore.Store
	// Recorder receives metrics. Defaults to metrics.NoopRecorder.
	Recorder metrics.Recorder
}

// Sourcer executes sourcing runs against one configuration.
type Sourcer struct {
	cfg      *config.Config
	store    graph.Store
	runs     *runstore.Store
	rec      metrics.Recorder
	sync     *gitsync.Synchronizer
	policy   retry.Policy
	matchers map[string]*match.Set
	locks    *pathLocks
}

// New builds a Sourcer. Glob patterns and the retry configuration are
// validated here so a bad source fails before any git traffic.
func New(cfg *config.Config, store graph.Store, opts Options) (*Sourcer, error) {
	if cfg == nil {
		return nil, errors.New("source: nil config")
	}
	if store == nil {
		return nil, errors.New("source: nil graph store")
	}

	policy, err := retry.FromConfig(cfg.Sync)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	matchers := make(map[string]*match.Set, len(cfg.Sources))
	for _, src := range cfg.Sources {
		m, err := match.NewSet(src.Patterns, src.Exclude)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}
		matchers[src.Name] = m
	}

	rec := opts.Recorder
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	return &Sourcer{
		cfg:      cfg,
		store:    store,
		runs:     opts.Runs,
		rec:      rec,
		sync:     gitsync.New(cfg.Sync.Depth),
		policy:   policy,
		matchers: matchers,
		locks:    newPathLocks(),
	}, nil
}
