package gitsync

import (
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/gitsource/internal/config"
)

func TestResolveTargetBranchExplicitWins(t *testing.T) {
	path := t.TempDir()
	repo, err := git.PlainInit(path, false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	addFileAndCommit(t, repo, path, "a.txt", "A", "A")

	got := resolveTargetBranch(repo, Target{Branch: "feature-x", Policy: config.BranchPolicyRemoteDefault})
	if got != "feature-x" {
		t.Errorf("branch = %s, want feature-x", got)
	}
}

func TestResolveTargetBranchTracksCurrent(t *testing.T) {
	path := t.TempDir()
	repo, err := git.PlainInit(path, false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	addFileAndCommit(t, repo, path, "a.txt", "A", "A")

	got := resolveTargetBranch(repo, Target{})
	// Initial branch name depends on the git implementation.
	if got != "master" && got != "main" {
		t.Errorf("branch = %s, want master or main", got)
	}
}

func TestResolveTargetBranchRemoteDefaultPolicy(t *testing.T) {
	path := t.TempDir()
	repo, err := git.PlainInit(path, false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	addFileAndCommit(t, repo, path, "a.txt", "A", "A")

	headRef := plumbing.NewSymbolicReference(
		plumbing.ReferenceName(originHeadRef),
		plumbing.ReferenceName("refs/remotes/origin/trunk"),
	)
	if err := repo.Storer.SetReference(headRef); err != nil {
		t.Fatalf("set origin/HEAD: %v", err)
	}

	got := resolveTargetBranch(repo, Target{Policy: config.BranchPolicyRemoteDefault})
	if got != "trunk" {
		t.Errorf("branch = %s, want trunk", got)
	}

	// track-current ignores origin/HEAD while a branch is checked out.
	got = resolveTargetBranch(repo, Target{Policy: config.BranchPolicyTrackCurrent})
	if got == "trunk" || got == "" {
		t.Errorf("branch = %q, want the checked out branch", got)
	}
}

func TestResolveTargetBranchFallsBackToMain(t *testing.T) {
	// A bare repository has neither a born HEAD branch nor origin/HEAD.
	path := filepath.Join(t.TempDir(), "bare.git")
	repo, err := git.PlainInit(path, true)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if got := resolveTargetBranch(repo, Target{}); got != "main" {
		t.Errorf("branch = %s, want main", got)
	}
}

func TestRemoteDefaultBranchMissing(t *testing.T) {
	path := t.TempDir()
	repo, err := git.PlainInit(path, false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if got := remoteDefaultBranch(repo); got != "" {
		t.Errorf("remoteDefaultBranch = %q, want empty", got)
	}
}
