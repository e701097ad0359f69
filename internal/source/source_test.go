package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/gitsource/internal/config"
	"git.home.luguber.info/inful/gitsource/internal/gitsync"
	"git.home.luguber.info/inful/gitsource/internal/graph"
	"git.home.luguber.info/inful/gitsource/internal/runstore"
)

// newFixtureRemote creates a bare repository plus a seed worktree with
// origin pointing at it. Commits are made in the seed and pushed.
func newFixtureRemote(t *testing.T) (barePath string, seedRepo *git.Repository, seedPath string) {
	t.Helper()
	tmp := t.TempDir()
	barePath = filepath.Join(tmp, "remote.git")
	_, err := git.PlainInit(barePath, true)
	require.NoError(t, err)
	seedPath = filepath.Join(tmp, "seed")
	seedRepo, err = git.PlainInit(seedPath, false)
	require.NoError(t, err)
	_, err = seedRepo.CreateRemote(&gitcfg.RemoteConfig{Name: "origin", URLs: []string{barePath}})
	require.NoError(t, err)
	return barePath, seedRepo, seedPath
}

func commitFiles(t *testing.T, repo *git.Repository, repoPath, msg string, files map[string]string) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for name, content := range files {
		abs := filepath.Join(repoPath, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o750))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o600))
		_, err = wt.Add(name)
		require.NoError(t, err)
	}
	h, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return h
}

func removeAndCommit(t *testing.T, repo *git.Repository, name, msg string) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Remove(name)
	require.NoError(t, err)
	h, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return h
}

func pushAll(t *testing.T, repo *git.Repository) {
	t.Helper()
	err := repo.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitcfg.RefSpec{"refs/heads/*:refs/heads/*"},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		t.Fatalf("push: %v", err)
	}
}

// testConfig builds a minimal configuration around the given sources.
// Depth -1 keeps fixture clones full history.
func testConfig(t *testing.T, sources ...config.Source) *config.Config {
	t.Helper()
	return &config.Config{
		Workspace: filepath.Join(t.TempDir(), "workspace"),
		Sources:   sources,
		Sync:      config.SyncConfig{Depth: -1},
	}
}

func TestRun_RegistersRemoteAndFileNodes(t *testing.T) {
	bare, seed, seedPath := newFixtureRemote(t)
	readme := "# Hello World\n\nSee [the guide](docs/guide.md).\n"
	guide := "---\ntitle: Guide\n---\n\n# Different Heading\n"
	notes := "plain note\n"
	head := commitFiles(t, seed, seedPath, "initial", map[string]string{
		"readme.md":      readme,
		"docs/guide.md":  guide,
		"notes.txt":      notes,
		"assets/raw.bin": "\x00\x01",
	})
	pushAll(t, seed)

	cfg := testConfig(t, config.Source{
		Name:     "handbook",
		Remote:   bare,
		Patterns: []string{"**.md", "*.txt"},
		Tags:     map[string]string{"team": "docs"},
	})
	store := graph.NewMemoryStore()
	s, err := New(cfg, store, Options{})
	require.NoError(t, err)

	summary, err := s.Run(t.Context())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Total)
	require.Len(t, summary.Results, 1)
	require.Equal(t, runstore.OutcomeSuccess, summary.Outcome())
	require.Equal(t, 3, summary.Files())

	res := summary.Results[0]
	require.NoError(t, res.Err)
	require.Equal(t, runstore.OutcomeSuccess, res.Outcome)
	require.Equal(t, 3, res.Files)
	require.NotNil(t, res.Checkout)
	require.True(t, res.Checkout.Cloned)
	require.Equal(t, "master", res.Checkout.Branch)
	require.Equal(t, head.String(), res.Checkout.Commit)

	remotes, err := store.Remotes(t.Context())
	require.NoError(t, err)
	require.Len(t, remotes, 1)
	remote := remotes[0]
	require.Equal(t, graph.RemoteID(bare), remote.ID)
	require.Equal(t, graph.KindGitRemote, remote.Kind)
	require.Equal(t, "handbook", remote.Source)
	require.Equal(t, bare, remote.URL)
	require.Equal(t, "remote", remote.Name)
	require.Equal(t, "master", remote.Branch)
	require.Equal(t, head.String(), remote.Commit)
	require.Equal(t, "handbook", remote.Slug)
	require.Equal(t, "docs", remote.Tags["team"])
	require.False(t, remote.SyncedAt.IsZero())

	files, err := store.FilesByRemote(t.Context(), remote.ID)
	require.NoError(t, err)
	require.Len(t, files, 3)
	byPath := make(map[string]*graph.FileNode, len(files))
	for _, f := range files {
		require.Equal(t, graph.KindRepoFile, f.Kind)
		require.Equal(t, remote.ID, f.RemoteID)
		require.Equal(t, "handbook", f.Source)
		require.Equal(t, graph.FileID(remote.ID, f.Path), f.ID)
		byPath[f.Path] = f
	}

	rm := byPath["readme.md"]
	require.NotNil(t, rm)
	require.Equal(t, "Hello World", rm.Title)
	require.Equal(t, "readme", rm.Slug)
	require.Equal(t, "readme.md", rm.Name)
	require.Equal(t, ".md", rm.Ext)
	require.Equal(t, []string{"docs/guide.md"}, rm.Links)
	require.Equal(t, graph.DigestBytes([]byte(readme)), rm.Digest)
	require.Equal(t, int64(len(readme)), rm.Size)
	require.Equal(t, filepath.Join(cfg.Workspace, "handbook", "readme.md"), rm.AbsPath)
	require.Equal(t, "docs", rm.Tags["team"])

	gd := byPath["docs/guide.md"]
	require.NotNil(t, gd)
	require.Equal(t, "Guide", gd.Title)
	require.Equal(t, "Guide", gd.FrontMatter["title"])

	nt := byPath["notes.txt"]
	require.NotNil(t, nt)
	require.Empty(t, nt.Title)
	require.Nil(t, nt.FrontMatter)
	require.Equal(t, graph.DigestBytes([]byte(notes)), nt.Digest)
}

func TestRun_RefreshReplacesStaleFileNodes(t *testing.T) {
	bare, seed, seedPath := newFixtureRemote(t)
	commitFiles(t, seed, seedPath, "initial", map[string]string{
		"a.md": "# A\n",
		"b.md": "# B\n",
	})
	pushAll(t, seed)

	cfg := testConfig(t, config.Source{Name: "docs", Remote: bare, Patterns: []string{"**.md"}})
	store := graph.NewMemoryStore()
	s, err := New(cfg, store, Options{})
	require.NoError(t, err)

	first, err := s.Run(t.Context())
	require.NoError(t, err)
	require.Equal(t, 2, first.Files())

	removeAndCommit(t, seed, "b.md", "drop b")
	head := commitFiles(t, seed, seedPath, "add c", map[string]string{"c.md": "# C\n"})
	pushAll(t, seed)

	second, err := s.Run(t.Context())
	require.NoError(t, err)
	require.Equal(t, runstore.OutcomeSuccess, second.Outcome())
	require.Len(t, second.Results, 1)
	require.False(t, second.Results[0].Checkout.Cloned)
	require.Equal(t, head.String(), second.Results[0].Checkout.Commit)

	remoteID := graph.RemoteID(bare)
	files, err := store.FilesByRemote(t.Context(), remoteID)
	require.NoError(t, err)
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	require.ElementsMatch(t, []string{"a.md", "c.md"}, paths)

	_, err = store.File(t.Context(), graph.FileID(remoteID, "b.md"))
	require.ErrorIs(t, err, graph.ErrNotFound)

	remote, err := store.Remote(t.Context(), remoteID)
	require.NoError(t, err)
	require.Equal(t, head.String(), remote.Commit)
}

func TestRun_ConflictLeavesOtherSourcesIntact(t *testing.T) {
	bareA, seedA, seedAPath := newFixtureRemote(t)
	commitFiles(t, seedA, seedAPath, "initial", map[string]string{"a.md": "# A\n"})
	pushAll(t, seedA)
	bareB, seedB, seedBPath := newFixtureRemote(t)
	commitFiles(t, seedB, seedBPath, "initial", map[string]string{"b.md": "# B\n"})
	pushAll(t, seedB)

	workspace := t.TempDir()

	// Seed the "repo" checkout so it tracks bareA.
	seedCfg := &config.Config{
		Workspace: workspace,
		Sources:   []config.Source{{Name: "repo", Remote: bareA}},
		Sync:      config.SyncConfig{Depth: -1},
	}
	seedSourcer, err := New(seedCfg, graph.NewMemoryStore(), Options{})
	require.NoError(t, err)
	seeded, err := seedSourcer.Run(t.Context())
	require.NoError(t, err)
	require.Equal(t, runstore.OutcomeSuccess, seeded.Outcome())

	// Same checkout directory, different remote: a conflict for "repo"
	// that must not disturb "other".
	cfg := &config.Config{
		Workspace: workspace,
		Sources: []config.Source{
			{Name: "repo", Remote: bareB},
			{Name: "other", Remote: bareA},
		},
		Sync: config.SyncConfig{Depth: -1},
	}
	store := graph.NewMemoryStore()
	s, err := New(cfg, store, Options{})
	require.NoError(t, err)

	summary, err := s.Run(t.Context())
	require.NoError(t, err)
	require.Equal(t, OutcomePartial, summary.Outcome())
	require.Len(t, summary.Results, 2)

	other := summary.Results[0]
	require.Equal(t, "other", other.Source)
	require.NoError(t, other.Err)
	require.Equal(t, 1, other.Files)

	repo := summary.Results[1]
	require.Equal(t, "repo", repo.Source)
	require.Equal(t, runstore.OutcomeConflict, repo.Outcome)
	var conflict *gitsync.ConflictError
	require.ErrorAs(t, repo.Err, &conflict)
	require.Equal(t, bareA, conflict.Existing)
	require.Equal(t, bareB, conflict.Requested)

	// The conflicting checkout was not touched.
	data, err := os.ReadFile(filepath.Join(workspace, "repo", "a.md"))
	require.NoError(t, err)
	require.Equal(t, "# A\n", string(data))

	remoteCount, fileCount := store.Len()
	require.Equal(t, 1, remoteCount)
	require.Equal(t, 1, fileCount)
	files, err := store.FilesByRemote(t.Context(), graph.RemoteID(bareA))
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "a.md", files[0].Path)
}

func TestRunSource_SyncsOnlyTheNamedSource(t *testing.T) {
	bare, seed, seedPath := newFixtureRemote(t)
	commitFiles(t, seed, seedPath, "initial", map[string]string{"a.md": "# A\n"})
	pushAll(t, seed)

	cfg := testConfig(t,
		config.Source{Name: "wanted", Remote: bare},
		config.Source{Name: "ignored", Remote: bare},
	)
	store := graph.NewMemoryStore()
	s, err := New(cfg, store, Options{})
	require.NoError(t, err)

	res, err := s.RunSource(t.Context(), "wanted")
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Equal(t, 1, res.Files)

	remoteCount, fileCount := store.Len()
	require.Equal(t, 1, remoteCount)
	require.Equal(t, 1, fileCount)
	_, err = os.Stat(filepath.Join(cfg.Workspace, "ignored"))
	require.True(t, os.IsNotExist(err))
}

func TestRunSource_UnknownName(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, graph.NewMemoryStore(), Options{})
	require.NoError(t, err)

	_, err = s.RunSource(t.Context(), "nope")
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown source "nope"`)
}

func TestSyncSource_RefreshesWithoutRegistering(t *testing.T) {
	bare, seed, seedPath := newFixtureRemote(t)
	commitFiles(t, seed, seedPath, "initial", map[string]string{"a.md": "# A\n"})
	pushAll(t, seed)

	cfg := testConfig(t, config.Source{Name: "docs", Remote: bare})
	store := graph.NewMemoryStore()
	s, err := New(cfg, store, Options{})
	require.NoError(t, err)

	co, err := s.SyncSource(t.Context(), "docs")
	require.NoError(t, err)
	require.True(t, co.Cloned)
	require.FileExists(t, filepath.Join(co.Path, "a.md"))

	head := commitFiles(t, seed, seedPath, "update", map[string]string{"b.md": "# B\n"})
	pushAll(t, seed)

	co, err = s.SyncSource(t.Context(), "docs")
	require.NoError(t, err)
	require.False(t, co.Cloned)
	require.Equal(t, head.String(), co.Commit)

	remoteCount, fileCount := store.Len()
	require.Zero(t, remoteCount)
	require.Zero(t, fileCount)

	_, err = s.SyncSource(t.Context(), "ghost")
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown source "ghost"`)
}

func TestRun_RecordsHistory(t *testing.T) {
	bare, seed, seedPath := newFixtureRemote(t)
	head := commitFiles(t, seed, seedPath, "initial", map[string]string{"a.md": "# A\n"})
	pushAll(t, seed)

	runs, err := runstore.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer runs.Close()

	cfg := testConfig(t,
		config.Source{Name: "good", Remote: bare},
		config.Source{Name: "bad", Remote: filepath.Join(t.TempDir(), "absent.git")},
	)
	s, err := New(cfg, graph.NewMemoryStore(), Options{Runs: runs})
	require.NoError(t, err)

	summary, err := s.Run(t.Context())
	require.NoError(t, err)
	require.Equal(t, OutcomePartial, summary.Outcome())

	good, err := runs.BySource(t.Context(), "good", 10)
	require.NoError(t, err)
	require.Len(t, good, 1)
	require.Equal(t, runstore.OutcomeSuccess, good[0].Outcome)
	require.Equal(t, 1, good[0].Files)
	require.True(t, good[0].Cloned)
	require.Equal(t, "master", good[0].Branch)
	require.Equal(t, head.String(), good[0].Commit)
	require.Empty(t, good[0].Error)

	bad, err := runs.BySource(t.Context(), "bad", 10)
	require.NoError(t, err)
	require.Len(t, bad, 1)
	require.Equal(t, runstore.OutcomeFailed, bad[0].Outcome)
	require.NotEmpty(t, bad[0].Error)
	require.Empty(t, bad[0].Commit)
}

func TestRun_NoSources(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, graph.NewMemoryStore(), Options{})
	require.NoError(t, err)

	summary, err := s.Run(t.Context())
	require.NoError(t, err)
	require.Equal(t, 0, summary.Total)
	require.Empty(t, summary.Results)
	require.Equal(t, runstore.OutcomeSuccess, summary.Outcome())
}

func TestNew_RejectsBadPattern(t *testing.T) {
	cfg := testConfig(t, config.Source{Name: "docs", Remote: "https://example.com/r.git", Patterns: []string{"["}})
	_, err := New(cfg, graph.NewMemoryStore(), Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "source docs")
}
