// Package runstore keeps an append-only SQLite history of source runs.
// The daemon records every run here; the status endpoint and the CLI
// query it.
package runstore

import (
	"time"

	"github.com/google/uuid"
)

// Outcome values recorded per run.
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

// Run is one recorded synchronization of one source.
type Run struct {
	ID     uuid.UUID
	Source string
	Remote string
	Branch string
	Commit string

	// Files is the matched file count registered in the graph.
	Files int
	// Cloned is true when the run created the checkout.
	Cloned bool

	Outcome string
	// Error holds the failure message for non-success outcomes.
	Error string

	StartedAt time.Time
	Duration  time.Duration
}
