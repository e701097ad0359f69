package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once              sync.Once
	syncDuration      *prom.HistogramVec
	syncResults       *prom.CounterVec
	runDuration       prom.Histogram
	runOutcomes       *prom.CounterVec
	sourceConcurrency prom.Gauge
	retries           *prom.CounterVec
	retriesExhausted  *prom.CounterVec
	graphNodes        *prom.GaugeVec
	filesMatched      *prom.GaugeVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics
// (idempotent per recorder).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.syncDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "gitsource",
			Name:      "sync_duration_seconds",
			Help:      "Duration of individual source synchronizations",
			Buckets:   prom.DefBuckets,
		}, []string{"source", "result"})
		pr.syncResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "gitsource",
			Name:      "sync_results_total",
			Help:      "Sync outcomes across all sources",
		}, []string{"result"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "gitsource",
			Name:      "run_duration_seconds",
			Help:      "Total sourcing run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.runOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "gitsource",
			Name:      "run_outcomes_total",
			Help:      "Sourcing run outcomes by final status",
		}, []string{"outcome"})
		pr.sourceConcurrency = prom.NewGauge(prom.GaugeOpts{
			Namespace: "gitsource",
			Name:      "source_concurrency",
			Help:      "Worker count of the last sourcing run",
		})
		pr.retries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "gitsource",
			Name:      "sync_retries_total",
			Help:      "Transient sync failures that were retried",
		}, []string{"source"})
		pr.retriesExhausted = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "gitsource",
			Name:      "sync_retry_exhausted_total",
			Help:      "Sources whose retry budget ran out",
		}, []string{"source"})
		pr.graphNodes = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "gitsource",
			Name:      "graph_nodes",
			Help:      "Current node counts in the content graph",
		}, []string{"kind"})
		pr.filesMatched = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "gitsource",
			Name:      "files_matched",
			Help:      "Matched file count from the last run per source",
		}, []string{"source"})
		reg.MustRegister(pr.syncDuration, pr.syncResults, pr.runDuration, pr.runOutcomes,
			pr.sourceConcurrency, pr.retries, pr.retriesExhausted, pr.graphNodes, pr.filesMatched)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveSyncDuration(source string, d time.Duration, success bool) {
	if p == nil || p.syncDuration == nil {
		return
	}
	p.syncDuration.WithLabelValues(source, resultString(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSyncResult(result ResultLabel) {
	if p == nil || p.syncResults == nil {
		return
	}
	p.syncResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) SetSourceConcurrency(n int) {
	if p == nil || p.sourceConcurrency == nil {
		return
	}
	p.sourceConcurrency.Set(float64(n))
}

func (p *PrometheusRecorder) IncSyncRetry(source string) {
	if p == nil || p.retries == nil {
		return
	}
	p.retries.WithLabelValues(source).Inc()
}

func (p *PrometheusRecorder) IncSyncRetryExhausted(source string) {
	if p == nil || p.retriesExhausted == nil {
		return
	}
	p.retriesExhausted.WithLabelValues(source).Inc()
}

func (p *PrometheusRecorder) SetGraphNodes(remotes, files int) {
	if p == nil || p.graphNodes == nil {
		return
	}
	p.graphNodes.WithLabelValues("remote").Set(float64(remotes))
	p.graphNodes.WithLabelValues("file").Set(float64(files))
}

func (p *PrometheusRecorder) SetFilesMatched(source string, n int) {
	if p == nil || p.filesMatched == nil {
		return
	}
	p.filesMatched.WithLabelValues(source).Set(float64(n))
}

func resultString(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics
// for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
