package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/gitsource/internal/config"
	"git.home.luguber.info/inful/gitsource/internal/runstore"
	"git.home.luguber.info/inful/gitsource/internal/source"
)

// newSeededRemote creates a bare repository holding one pushed commit
// with a readme.md.
func newSeededRemote(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	bare := filepath.Join(tmp, "remote.git")
	_, err := git.PlainInit(bare, true)
	require.NoError(t, err)

	seedPath := filepath.Join(tmp, "seed")
	seed, err := git.PlainInit(seedPath, false)
	require.NoError(t, err)
	_, err = seed.CreateRemote(&gitcfg.RemoteConfig{Name: "origin", URLs: []string{bare}})
	require.NoError(t, err)

	wt, err := seed.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(seedPath, "readme.md"), []byte("# Hi\n"), 0o600))
	_, err = wt.Add("readme.md")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	require.NoError(t, seed.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitcfg.RefSpec{"refs/heads/*:refs/heads/*"},
	}))
	return bare
}

func daemonConfig(t *testing.T, sources ...config.Source) *config.Config {
	t.Helper()
	return &config.Config{
		Workspace: filepath.Join(t.TempDir(), "workspace"),
		Sources:   sources,
		Sync:      config.SyncConfig{Depth: -1},
		Daemon: config.DaemonConfig{
			Interval: "1h",
			Listen:   "127.0.0.1:0",
		},
	}
}

func TestDaemon_RunAllRegistersNodes(t *testing.T) {
	bare := newSeededRemote(t)
	cfg := daemonConfig(t, config.Source{Name: "docs", Remote: bare})
	d, err := New(cfg, "")
	require.NoError(t, err)
	defer func() { _ = d.runs.Close() }()

	summary, err := d.RunAll(t.Context())
	require.NoError(t, err)
	require.Equal(t, runstore.OutcomeSuccess, summary.Outcome())
	require.Equal(t, 1, summary.Files())
	require.Same(t, summary, d.LastRun())

	remotes, files := d.store.Len()
	require.Equal(t, 1, remotes)
	require.Equal(t, 1, files)

	res, err := d.RefreshSource(t.Context(), "docs")
	require.NoError(t, err)
	require.NoError(t, res.Err)

	_, err = d.RefreshSource(t.Context(), "ghost")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown source")

	payload := d.statusPayload(t.Context())
	require.Equal(t, 1, payload.Remotes)
	require.Equal(t, 1, payload.Files)
	require.NotNil(t, payload.LastRun)
	require.Equal(t, runstore.OutcomeSuccess, payload.LastRun.Outcome)
	require.NotEmpty(t, payload.RecentRuns)
	require.Equal(t, "docs", payload.RecentRuns[0].Source)
}

func TestDaemon_ReloadConfigSwapsSourceSet(t *testing.T) {
	bare := newSeededRemote(t)
	cfg := daemonConfig(t, config.Source{Name: "a", Remote: bare})
	d, err := New(cfg, "")
	require.NoError(t, err)
	defer func() { _ = d.runs.Close() }()

	next := &config.Config{
		Workspace: cfg.Workspace,
		Sources: []config.Source{
			{Name: "a", Remote: bare},
			{Name: "b", Remote: bare},
		},
		Sync:   cfg.Sync,
		Daemon: cfg.Daemon,
	}
	require.NoError(t, d.ReloadConfig(t.Context(), next))
	require.Same(t, next, d.Config())

	res, err := d.RefreshSource(t.Context(), "b")
	require.NoError(t, err)
	require.NoError(t, res.Err)

	bad := &config.Config{
		Workspace: cfg.Workspace,
		Sources:   []config.Source{{Name: "a", Remote: bare, Patterns: []string{"["}}},
		Sync:      cfg.Sync,
		Daemon:    cfg.Daemon,
	}
	require.Error(t, d.ReloadConfig(t.Context(), bad))
	require.Same(t, next, d.Config())
}

func TestDaemon_LifecycleServesHTTP(t *testing.T) {
	cfg := daemonConfig(t)
	cfg.Metrics.Enabled = true
	d, err := New(cfg, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	require.Eventually(t, func() bool { return d.GetStatus() == StatusRunning },
		5*time.Second, 10*time.Millisecond)

	base := "http://" + d.http.Addr()

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "running")

	// The immediate scheduled run finishes even with no sources.
	require.Eventually(t, func() bool { return d.LastRun() != nil },
		5*time.Second, 10*time.Millisecond)

	resp, err = http.Get(base + "/status")
	require.NoError(t, err)
	var payload StatusPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.NoError(t, resp.Body.Close())
	require.Equal(t, StatusRunning, payload.Status)
	require.Equal(t, 0, payload.Sources)
	require.NotNil(t, payload.LastRun)
	require.Equal(t, runstore.OutcomeSuccess, payload.LastRun.Outcome)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "gitsource_source_concurrency")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}
	require.NoError(t, d.Stop(context.Background()))
	require.Equal(t, StatusStopped, d.GetStatus())

	_, err = http.Get(base + "/healthz")
	require.Error(t, err)
}

func TestHealthzReflectsStatus(t *testing.T) {
	cfg := daemonConfig(t)
	d, err := New(cfg, "")
	require.NoError(t, err)
	defer func() { _ = d.runs.Close() }()

	rec := httptest.NewRecorder()
	d.http.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "stopped")

	d.status.Store(StatusRunning)
	rec = httptest.NewRecorder()
	d.http.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	d.http.handleHealthz(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestScheduler_RunsImmediatelyAndOnInterval(t *testing.T) {
	s, err := NewScheduler()
	require.NoError(t, err)
	var count atomic.Int32
	s.SetRunner(func() { count.Add(1) })
	require.NoError(t, s.ScheduleRuns(50*time.Millisecond))
	s.Start(t.Context())
	require.Eventually(t, func() bool { return count.Load() >= 2 },
		5*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop(t.Context()))
}

func TestConfigWatcher_ReloadsSourceSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gitsource.yaml")
	workspace := filepath.Join(dir, "ws")

	write := func(sources string) {
		body := fmt.Sprintf("workspace: %s\nsources:\n%s", workspace, sources)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	write("  - name: alpha\n    remote: https://example.com/alpha.git\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	d, err := New(cfg, "")
	require.NoError(t, err)
	defer func() { _ = d.runs.Close() }()

	cw, err := NewConfigWatcher(path, d)
	require.NoError(t, err)
	cw.debounceTime = 50 * time.Millisecond
	require.NoError(t, cw.Start(t.Context()))
	defer func() { _ = cw.Stop(context.Background()) }()

	write("  - name: alpha\n    remote: https://example.com/alpha.git\n" +
		"  - name: beta\n    remote: https://example.com/beta.git\n")

	require.Eventually(t, func() bool { return len(d.Config().Sources) == 2 },
		5*time.Second, 20*time.Millisecond)
	require.Equal(t, "beta", d.Config().Sources[1].Name)
}

func TestParseRefreshSource(t *testing.T) {
	require.Equal(t, "docs", parseRefreshSource([]byte("docs")))
	require.Equal(t, "docs", parseRefreshSource([]byte("  docs\n")))
	require.Equal(t, "docs", parseRefreshSource([]byte(`{"source":"docs"}`)))
	require.Empty(t, parseRefreshSource(nil))
	require.Empty(t, parseRefreshSource([]byte(`{}`)))
}

func TestRunEventFromSummary(t *testing.T) {
	summary := &source.Summary{
		RunID:    uuid.New(),
		Started:  time.Now(),
		Total:    2,
		Duration: 1500 * time.Millisecond,
		Results: []source.Result{
			{Source: "a", Files: 3, Outcome: runstore.OutcomeSuccess},
			{Source: "b", Err: errors.New("boom"), Outcome: runstore.OutcomeFailed},
		},
	}
	evt := runEvent(summary)
	require.Equal(t, summary.RunID.String(), evt.RunID)
	require.Equal(t, source.OutcomePartial, evt.Outcome)
	require.Equal(t, 2, evt.Sources)
	require.Equal(t, 1, evt.Failed)
	require.Equal(t, 3, evt.Files)
	require.InDelta(t, 1500, evt.DurationMS, 0.1)
}
