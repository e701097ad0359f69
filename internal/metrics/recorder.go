// Package metrics provides observability hooks for source runs.
//
// Components receive a Recorder through dependency injection and default
// to NoopRecorder, so metrics stay optional and call sites never check
// for nil. The daemon swaps in a PrometheusRecorder and serves the
// registry over HTTP.
package metrics

import "time"

// ResultLabel enumerates sync result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultConflict ResultLabel = "conflict"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for sync and run metrics.
// Implementations may forward to Prometheus or stay no-op.
type Recorder interface {
	// ObserveSyncDuration records one source synchronization.
	ObserveSyncDuration(source string, d time.Duration, success bool)
	// IncSyncResult counts sync outcomes across all sources.
	IncSyncResult(result ResultLabel)
	// ObserveRunDuration records a whole sourcing run.
	ObserveRunDuration(d time.Duration)
	// IncRunOutcome counts run outcomes. outcome: success|partial|failed|canceled
	IncRunOutcome(outcome string)
	// SetSourceConcurrency publishes the worker count of the last run.
	SetSourceConcurrency(n int)
	// IncSyncRetry counts transient sync failures that were retried.
	IncSyncRetry(source string)
	// IncSyncRetryExhausted counts sources whose retry budget ran out.
	IncSyncRetryExhausted(source string)
	// SetGraphNodes publishes current graph node counts.
	SetGraphNodes(remotes, files int)
	// SetFilesMatched publishes the matched file count per source.
	SetFilesMatched(source string, n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics
// are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveSyncDuration(string, time.Duration, bool) {}
func (NoopRecorder) IncSyncResult(ResultLabel)                       {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                {}
func (NoopRecorder) IncRunOutcome(string)                            {}
func (NoopRecorder) SetSourceConcurrency(int)                        {}
func (NoopRecorder) IncSyncRetry(string)                             {}
func (NoopRecorder) IncSyncRetryExhausted(string)                    {}
func (NoopRecorder) SetGraphNodes(int, int)                          {}
func (NoopRecorder) SetFilesMatched(string, int)                     {}
