package gitsync

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
)

// CheckoutState classifies what Sync finds at the local path.
type CheckoutState int

const (
	// StateAbsent means the path does not exist.
	StateAbsent CheckoutState = iota
	// StateEmptyDir means the path is a directory with no entries.
	StateEmptyDir
	// StateMatching means the path holds a checkout whose origin URL
	// equals the requested remote.
	StateMatching
	// StateMismatched means the path holds a checkout tracking a
	// different remote.
	StateMismatched
)

func (s CheckoutState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateEmptyDir:
		return "empty"
	case StateMatching:
		return "matching"
	case StateMismatched:
		return "mismatched"
	default:
		return fmt.Sprintf("CheckoutState(%d)", int(s))
	}
}

// DetectState classifies the path against the remote URL without
// mutating anything. A populated directory that is not a git checkout,
// or a checkout without an origin remote, is a SyncError.
func DetectState(path, remote string) (CheckoutState, error) {
	state, _, _, err := detect(path, strings.TrimSpace(remote))
	return state, err
}

// detect additionally returns the opened repository for StateMatching
// and the stored origin URL for StateMismatched.
func detect(path, remote string) (CheckoutState, *git.Repository, string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return StateAbsent, nil, "", nil
	}
	if err != nil {
		return 0, nil, "", newSyncError("inspect", remote, err)
	}
	if !info.IsDir() {
		return 0, nil, "", newSyncError("inspect", remote, fmt.Errorf("%s exists and is not a directory", path))
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, nil, "", newSyncError("inspect", remote, err)
	}
	if len(entries) == 0 {
		return StateEmptyDir, nil, "", nil
	}

	repo, err := git.PlainOpen(path)
	if err != nil {
		return 0, nil, "", newSyncError("inspect", remote, fmt.Errorf("%s is not empty and not a git checkout: %w", path, err))
	}

	origin, err := repo.Remote("origin")
	if err != nil {
		return 0, nil, "", newSyncError("inspect", remote, fmt.Errorf("checkout %s has no origin remote: %w", path, err))
	}
	urls := origin.Config().URLs
	if len(urls) == 0 {
		return 0, nil, "", newSyncError("inspect", remote, fmt.Errorf("checkout %s origin remote has no URL", path))
	}

	existing := strings.TrimSpace(urls[0])
	if existing == remote {
		return StateMatching, repo, existing, nil
	}
	return StateMismatched, nil, existing, nil
}
