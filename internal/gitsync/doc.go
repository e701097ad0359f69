// Package gitsync keeps local checkouts of remote git repositories in
// step with their remotes.
//
// Sync is a state machine over the local path. A missing or empty
// directory is populated by a shallow clone. A checkout whose origin
// URL matches the requested remote is fetched and hard-reset to the
// remote branch head. A checkout tracking a different remote is
// reported as a ConflictError and left untouched.
//
// Sync never retries. Callers that want retries wrap it with a policy
// from the retry package and use Retryable to filter permanent
// failures.
package gitsync
