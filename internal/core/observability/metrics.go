// Package observability wires Prometheus metrics for the fetch/cache/HTTP
// path. It is safe to call before Init -- every Observe/Inc function is a
// no-op until a registry is attached.
package observability

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

func Init(r prometheus.Registerer, isEnabled bool) {
	enabled.Store(isEnabled)
	if !isEnabled || r == nil {
		return
	}
	initCollectors(r)
}

func Enabled() bool { return enabled.Load() }

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	upstreamFetchTotal           *prometheus.CounterVec
	upstreamFetchDurationSeconds *prometheus.HistogramVec

	cacheOpTotal                  *prometheus.CounterVec
	redisOperationDurationSeconds *prometheus.HistogramVec
	cacheChunksWrittenTotal       prometheus.Counter
	cacheHistoryEvictedTotal      *prometheus.CounterVec

	schedulerRunsTotal    *prometheus.CounterVec
	schedulerSkippedTotal *prometheus.CounterVec
	schedulerLastRunTS    *prometheus.GaugeVec

	eventsPublishedTotal *prometheus.CounterVec
)

func initCollectors(r prometheus.Registerer) {
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total number of HTTP requests."},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "Duration of HTTP requests in seconds.", Buckets: prometheus.ExponentialBuckets(0.005, 2, 12)},
		[]string{"method", "route", "status"},
	)

	upstreamFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "upstream_fetch_total", Help: "OpenDAP fetch attempts by dataset and outcome."},
		[]string{"dataset", "outcome"},
	)
	upstreamFetchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "upstream_fetch_duration_seconds", Help: "Latency of OpenDAP fetches in seconds.", Buckets: prometheus.ExponentialBuckets(0.05, 2, 12)},
		[]string{"dataset"},
	)

	cacheOpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cache_op_total", Help: "Count of cache operations by op and outcome."},
		[]string{"op", "outcome"},
	)
	redisOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "redis_operation_duration_seconds", Help: "Latency of Redis operations in seconds.", Buckets: prometheus.ExponentialBuckets(0.001, 2, 15)},
		[]string{"op"},
	)
	cacheChunksWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "cache_chunks_written_total", Help: "Total number of chunk keys written by set_json."},
	)
	cacheHistoryEvictedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cache_history_evicted_total", Help: "Total number of IndexEntries evicted by base key."},
		[]string{"base_key"},
	)

	schedulerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "scheduler_runs_total", Help: "Scheduler fetch_single invocations by mode and outcome."},
		[]string{"mode", "outcome"},
	)
	schedulerSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "scheduler_skipped_total", Help: "fetch_single calls short-circuited by the idempotence guard."},
		[]string{"mode"},
	)
	schedulerLastRunTS = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "scheduler_last_run_timestamp_seconds", Help: "Unix time of the last scheduler run by mode."},
		[]string{"mode"},
	)

	eventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "events_published_total", Help: "Refresh events published to Kafka by outcome."},
		[]string{"outcome"},
	)

	r.MustRegister(
		httpRequestsTotal, httpRequestDurationSeconds,
		upstreamFetchTotal, upstreamFetchDurationSeconds,
		cacheOpTotal, redisOperationDurationSeconds, cacheChunksWrittenTotal, cacheHistoryEvictedTotal,
		schedulerRunsTotal, schedulerSkippedTotal, schedulerLastRunTS,
		eventsPublishedTotal,
	)
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	if !enabled.Load() || httpRequestsTotal == nil {
		return
	}
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamFetch(dataset string, err error, durationSeconds float64) {
	if !enabled.Load() || upstreamFetchTotal == nil {
		return
	}
	if dataset == "" {
		dataset = "unknown"
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamFetchTotal.WithLabelValues(dataset, outcome).Inc()
	upstreamFetchDurationSeconds.WithLabelValues(dataset).Observe(durationSeconds)
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	if op == "" {
		op = "unknown"
	}
	outcome := "ok"
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
		case errors.Is(err, context.Canceled):
			outcome = "canceled"
		default:
			outcome = "error"
		}
	}
	if cacheOpTotal != nil {
		cacheOpTotal.WithLabelValues(op, outcome).Inc()
	}
	if redisOperationDurationSeconds != nil {
		redisOperationDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
	}
}

func AddChunksWritten(n int) {
	if !enabled.Load() || cacheChunksWrittenTotal == nil || n <= 0 {
		return
	}
	cacheChunksWrittenTotal.Add(float64(n))
}

func AddHistoryEvicted(baseKey string, n int) {
	if !enabled.Load() || cacheHistoryEvictedTotal == nil || n <= 0 {
		return
	}
	cacheHistoryEvictedTotal.WithLabelValues(baseKey).Add(float64(n))
}

func ObserveSchedulerRun(mode string, success bool) {
	if !enabled.Load() || schedulerRunsTotal == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	schedulerRunsTotal.WithLabelValues(mode, outcome).Inc()
	schedulerLastRunTS.WithLabelValues(mode).Set(float64(time.Now().Unix()))
}

func IncSchedulerSkipped(mode string) {
	if !enabled.Load() || schedulerSkippedTotal == nil {
		return
	}
	schedulerSkippedTotal.WithLabelValues(mode).Inc()
}

func ObserveEventPublished(err error) {
	if !enabled.Load() || eventsPublishedTotal == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	eventsPublishedTotal.WithLabelValues(outcome).Inc()
}
