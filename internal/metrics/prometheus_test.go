package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveSyncDuration("handbook", 150*time.Millisecond, true)
	pr.IncSyncResult(ResultSuccess)
	pr.ObserveRunDuration(500 * time.Millisecond)
	pr.IncRunOutcome("success")
	pr.SetSourceConcurrency(4)
	pr.IncSyncRetry("handbook")
	pr.IncSyncRetryExhausted("handbook")
	pr.SetGraphNodes(2, 40)
	pr.SetFilesMatched("handbook", 40)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) != 9 {
		t.Fatalf("metric families = %d, want 9", len(mfs))
	}
	for _, mf := range mfs {
		if !strings.HasPrefix(mf.GetName(), "gitsource_") {
			t.Errorf("metric %s missing gitsource namespace", mf.GetName())
		}
	}
}

func TestPrometheusRecorderNilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	// A nil recorder must not panic; callers may carry it unconfigured.
	pr.ObserveSyncDuration("x", time.Second, false)
	pr.IncSyncResult(ResultFailed)
	pr.ObserveRunDuration(time.Second)
	pr.IncRunOutcome("failed")
	pr.SetSourceConcurrency(1)
	pr.IncSyncRetry("x")
	pr.IncSyncRetryExhausted("x")
	pr.SetGraphNodes(0, 0)
	pr.SetFilesMatched("x", 0)
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncSyncResult(ResultSuccess)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "gitsource_sync_results_total") {
		t.Errorf("scrape output missing sync results counter:\n%s", rec.Body.String())
	}
}
