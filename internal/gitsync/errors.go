package gitsync

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// FailureKind coarsely classifies sync failures so callers can decide
// about retries without string matching.
type FailureKind string

const (
	FailureAuth     FailureKind = "auth"
	FailureNotFound FailureKind = "not-found"
	FailureProtocol FailureKind = "protocol"
	FailureNetwork  FailureKind = "network"
	FailureOther    FailureKind = "other"
)

// SyncError wraps a failed repository operation. Op names the phase
// that failed (inspect, clone, fetch, resolve, reset).
type SyncError struct {
	Op   string
	URL  string
	Kind FailureKind
	Err  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

func newSyncError(op, url string, err error) *SyncError {
	return &SyncError{Op: op, URL: url, Kind: classifyKind(err), Err: err}
}

// ConflictError reports a checkout whose origin tracks a different
// remote than the configuration asks for. The checkout is left exactly
// as it was found.
type ConflictError struct {
	Path      string
	Existing  string
	Requested string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("checkout %s tracks %s but configuration wants %s", e.Path, e.Existing, e.Requested)
}

// classifyKind maps transport and filesystem failures onto a
// FailureKind. go-git sentinel errors are checked first, then the
// message is inspected for causes go-git only reports as text.
func classifyKind(err error) FailureKind {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		return FailureAuth
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return FailureNotFound
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return FailureNetwork
	}

	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication"),
		strings.Contains(l, "authorization"),
		strings.Contains(l, "permission denied"),
		strings.Contains(l, "invalid credentials"):
		return FailureAuth
	case strings.Contains(l, "not found"),
		strings.Contains(l, "does not exist"):
		return FailureNotFound
	case strings.Contains(l, "unsupported scheme"),
		strings.Contains(l, "unsupported protocol"),
		strings.Contains(l, "unknown protocol"):
		return FailureProtocol
	case strings.Contains(l, "timeout"),
		strings.Contains(l, "timed out"),
		strings.Contains(l, "connection refused"),
		strings.Contains(l, "connection reset"),
		strings.Contains(l, "no route to host"),
		strings.Contains(l, "temporarily unavailable"),
		strings.Contains(l, "remote hung up"):
		return FailureNetwork
	default:
		return FailureOther
	}
}

// Retryable reports whether another sync attempt could help.
// Configuration conflicts and permanent transport failures cannot.
func Retryable(err error) bool {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return false
	}
	var serr *SyncError
	if errors.As(err, &serr) {
		switch serr.Kind {
		case FailureAuth, FailureNotFound, FailureProtocol:
			return false
		}
	}
	return true
}
