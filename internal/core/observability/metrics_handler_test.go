package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, true)

	ObserveHTTP("GET", "/api/wind-global", 200, 0.001)
	ObserveSchedulerRun("latest", true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "http_requests_total") {
		t.Fatalf("metrics payload missing http_requests_total; got:\n%s", body)
	}
	if !strings.Contains(body, "scheduler_runs_total") {
		t.Fatalf("metrics payload missing scheduler_runs_total; got:\n%s", body)
	}
}

func TestObserve_NoopWhenDisabled(t *testing.T) {
	enabled.Store(false)
	// must not panic with nil collectors
	ObserveHTTP("GET", "/x", 200, 0.001)
	ObserveCacheOp("set", nil, 0.001)
	ObserveSchedulerRun("backfill", false)
	IncSchedulerSkipped("latest")
}
