// ============================================================================
// Fleetd Metrics - Prometheus Monitoring
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Collect and expose worker-lifecycle and counter-subsystem
// metrics for Prometheus monitoring (SPEC_FULL §4.6's domain stack).
//
// This is an observability *projection* of the worker lifecycle (C3) and
// the counter subsystem (C4-C6), not a replacement for either: the
// authoritative counter aggregate still lives in internal/counter.Server;
// globalCounter just mirrors its "global" row into a Prometheus gauge so
// operators can graph aggregate job counts without RPC-polling the counter
// server directly.
//
// Metric Categories:
//
//   1. Job lifecycle counters - cumulative, monotonically increasing:
//      - fleet_jobs_prepared_total
//      - fleet_jobs_run_total
//      - fleet_jobs_cleared_total
//      - fleet_jobs_errored_total
//      - fleet_heartbeats_total
//
//   2. Performance metrics (Histogram):
//      - fleet_job_duration_seconds: elapsed time reported by clear_job
//
//   3. Counter subsystem projection (Gauge, one per item):
//      - fleet_counter_global: the increment counter's "global" row,
//        refreshed by the caller via SetGlobalCounter
//
// HTTP Endpoint:
//   Exposed via /metrics, scraped by Prometheus. Format: Prometheus text.
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects fleetd's Prometheus metrics.
type Collector struct {
	jobsPrepared prometheus.Counter
	jobsRun      prometheus.Counter
	jobsCleared  prometheus.Counter
	jobsErrored  prometheus.Counter
	heartbeats   prometheus.Counter

	jobDuration prometheus.Histogram

	globalCounter *prometheus.GaugeVec
}

// NewCollector creates and registers a new metrics collector.
func NewCollector() *Collector {
	c := &Collector{
		jobsPrepared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_jobs_prepared_total",
			Help: "Total number of successful prepare() calls",
		}),
		jobsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_jobs_run_total",
			Help: "Total number of runners started by run_job()",
		}),
		jobsCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_jobs_cleared_total",
			Help: "Total number of jobs cleared via clear_job()",
		}),
		jobsErrored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_jobs_errored_total",
			Help: "Total number of jobs that produced an error bundle",
		}),
		heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_heartbeats_total",
			Help: "Total number of successful register_heartbeat round trips",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleet_job_duration_seconds",
			Help:    "Elapsed time reported by clear_job",
			Buckets: prometheus.DefBuckets,
		}),
		globalCounter: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleet_counter_global",
			Help: "Mirror of the counter subsystem's global row (get_global)",
		}, []string{"item"}),
	}

	prometheus.MustRegister(c.jobsPrepared)
	prometheus.MustRegister(c.jobsRun)
	prometheus.MustRegister(c.jobsCleared)
	prometheus.MustRegister(c.jobsErrored)
	prometheus.MustRegister(c.heartbeats)
	prometheus.MustRegister(c.jobDuration)
	prometheus.MustRegister(c.globalCounter)

	return c
}

// RecordPrepared records a successful prepare() call.
func (c *Collector) RecordPrepared() { c.jobsPrepared.Inc() }

// RecordRun records a runner started by run_job().
func (c *Collector) RecordRun() { c.jobsRun.Inc() }

// RecordCleared records a clear_job() call, with its reported elapsed
// seconds.
func (c *Collector) RecordCleared(elapsedSeconds float64) {
	c.jobsCleared.Inc()
	c.jobDuration.Observe(elapsedSeconds)
}

// RecordErrored records a pack_job_error bundle having been produced.
func (c *Collector) RecordErrored() { c.jobsErrored.Inc() }

// RecordHeartbeat records one successful register_heartbeat round trip.
func (c *Collector) RecordHeartbeat() { c.heartbeats.Inc() }

// SetGlobalCounter mirrors one item of the counter subsystem's "global" row
// into the fleet_counter_global gauge.
func (c *Collector) SetGlobalCounter(item string, value float64) {
	c.globalCounter.WithLabelValues(item).Set(value)
}

// StartServer starts the Prometheus metrics HTTP server on port.
func StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, mux)
}
