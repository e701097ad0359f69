package gitsync

import (
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/gitsource/internal/config"
)

const originHeadRef = "refs/remotes/origin/HEAD"

// resolveTargetBranch picks the branch a refresh follows. An explicit
// branch always wins. Otherwise the policy decides: track-current keeps
// the branch the checkout is on, remote-default follows origin/HEAD.
// Each falls back to the other signal and finally to "main".
func resolveTargetBranch(repo *git.Repository, t Target) string {
	if t.Branch != "" {
		return t.Branch
	}

	current := ""
	if headRef, err := repo.Head(); err == nil && headRef.Name().IsBranch() {
		current = headRef.Name().Short()
	}
	remoteDefault := remoteDefaultBranch(repo)

	if t.effectivePolicy() == config.BranchPolicyRemoteDefault {
		if remoteDefault != "" {
			return remoteDefault
		}
		if current != "" {
			return current
		}
	} else {
		if current != "" {
			return current
		}
		if remoteDefault != "" {
			return remoteDefault
		}
	}
	return "main"
}

// remoteDefaultBranch reads the branch origin/HEAD points at. Empty
// when the symbolic ref is missing, which go-git clones usually leave
// unset.
func remoteDefaultBranch(repo *git.Repository) string {
	ref, err := repo.Reference(plumbing.ReferenceName(originHeadRef), false)
	if err != nil || ref.Type() != plumbing.SymbolicReference {
		return ""
	}
	target := string(ref.Target())
	return strings.TrimPrefix(target, "refs/remotes/origin/")
}
