package gitsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/gitsource/internal/config"
	"git.home.luguber.info/inful/gitsource/internal/logfields"
)

// Target names one checkout to synchronize.
type Target struct {
	// Path is the checkout directory.
	Path string
	// Remote is the URL origin must track. Leading and trailing
	// whitespace is ignored; the comparison is otherwise exact.
	Remote string
	// Branch pins the checkout to one branch. Empty lets Policy decide.
	Branch string
	// Policy applies when Branch is empty.
	Policy config.BranchPolicy
	// Auth is used for clone and fetch. Nil means anonymous.
	Auth transport.AuthMethod
}

func (t Target) effectivePolicy() config.BranchPolicy {
	if t.Policy == "" {
		return config.BranchPolicyTrackCurrent
	}
	return t.Policy
}

// Checkout describes a synchronized checkout after Sync returns.
type Checkout struct {
	Path   string
	Remote string
	// Branch is the branch HEAD names, empty when detached.
	Branch string
	// Commit is the full hex hash HEAD resolves to.
	Commit string
	// Cloned is true when this sync created the checkout.
	Cloned bool
}

// Synchronizer clones and refreshes checkouts. The zero value performs
// full-history syncs; New applies a shallow depth.
type Synchronizer struct {
	depth int
}

// New returns a Synchronizer with the given clone and fetch depth.
// Depth 1 gives the usual shallow mirror. Zero or negative depth
// transfers full history.
func New(depth int) *Synchronizer {
	return &Synchronizer{depth: depth}
}

// Sync brings the checkout at t.Path in step with t.Remote.
//
// The path decides the action: absent or empty directories are cloned,
// a checkout with a matching origin is fetched and hard-reset to the
// remote branch head, and a checkout tracking a different remote
// returns a ConflictError without any mutation. Local edits in a
// matching checkout are discarded by the reset.
func (s *Synchronizer) Sync(ctx context.Context, t Target) (*Checkout, error) {
	remote := strings.TrimSpace(t.Remote)
	if remote == "" {
		return nil, &SyncError{Op: "validate", URL: t.Remote, Kind: FailureOther, Err: errors.New("remote URL is empty")}
	}

	state, repo, existing, err := detect(t.Path, remote)
	if err != nil {
		return nil, err
	}

	slog.Debug("synchronizing checkout",
		logfields.Path(t.Path),
		logfields.Remote(remote),
		logfields.State(state.String()))

	switch state {
	case StateAbsent, StateEmptyDir:
		return s.clone(ctx, t, remote, state)
	case StateMismatched:
		return nil, &ConflictError{Path: t.Path, Existing: existing, Requested: remote}
	default:
		return s.refresh(ctx, t, remote, repo)
	}
}

func (s *Synchronizer) depthOption() int {
	if s.depth > 0 {
		return s.depth
	}
	return 0
}

func (s *Synchronizer) clone(ctx context.Context, t Target, remote string, prior CheckoutState) (*Checkout, error) {
	opts := &git.CloneOptions{
		URL:   remote,
		Depth: s.depthOption(),
		Tags:  git.NoTags,
		Auth:  t.Auth,
	}
	if t.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(t.Branch)
		opts.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(ctx, t.Path, false, opts)
	if err != nil {
		s.discardFailedClone(t.Path, prior)
		return nil, newSyncError("clone", remote, err)
	}

	co, err := describe(repo, t.Path, remote, true)
	if err != nil {
		return nil, err
	}
	slog.Info("checkout cloned",
		logfields.Path(t.Path),
		logfields.Remote(remote),
		logfields.Branch(co.Branch),
		logfields.Commit(shortHash(co.Commit)))
	return co, nil
}

// discardFailedClone restores the pre-clone state so the next attempt
// does not find a half-written directory.
func (s *Synchronizer) discardFailedClone(path string, prior CheckoutState) {
	if err := os.RemoveAll(path); err != nil {
		slog.Warn("could not remove partial clone", logfields.Path(path), logfields.Error(err))
		return
	}
	if prior == StateEmptyDir {
		if err := os.MkdirAll(path, 0o755); err != nil {
			slog.Warn("could not restore empty checkout directory", logfields.Path(path), logfields.Error(err))
		}
	}
}

func (s *Synchronizer) refresh(ctx context.Context, t Target, remote string, repo *git.Repository) (*Checkout, error) {
	if err := s.fetchOrigin(ctx, repo, t.Auth); err != nil {
		return nil, newSyncError("fetch", remote, err)
	}

	branch := resolveTargetBranch(repo, t)
	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return nil, newSyncError("resolve", remote, fmt.Errorf("origin/%s: %w", branch, err))
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, newSyncError("reset", remote, err)
	}
	// Hard reset pins the worktree to the fetched commit and discards
	// local edits. The branch name HEAD carries is left alone.
	if err := wt.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return nil, newSyncError("reset", remote, err)
	}

	co, err := describe(repo, t.Path, remote, false)
	if err != nil {
		return nil, err
	}
	slog.Info("checkout refreshed",
		logfields.Path(t.Path),
		logfields.Remote(remote),
		logfields.Branch(co.Branch),
		logfields.Commit(shortHash(co.Commit)))
	return co, nil
}

func (s *Synchronizer) fetchOrigin(ctx context.Context, repo *git.Repository, auth transport.AuthMethod) error {
	opts := &git.FetchOptions{
		RemoteName: "origin",
		Tags:       git.NoTags,
		RefSpecs:   []gitcfg.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Depth:      s.depthOption(),
		Auth:       auth,
	}
	if err := repo.FetchContext(ctx, opts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}

func describe(repo *git.Repository, path, remote string, cloned bool) (*Checkout, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, newSyncError("resolve", remote, fmt.Errorf("head: %w", err))
	}
	branch := ""
	if head.Name().IsBranch() {
		branch = head.Name().Short()
	}
	return &Checkout{
		Path:   path,
		Remote: remote,
		Branch: branch,
		Commit: head.Hash().String(),
		Cloned: cloned,
	}, nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
