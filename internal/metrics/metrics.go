// Package metrics holds the Prometheus counters for a reposcan run.
//
// The CLI is short-lived, so nothing is served over HTTP. When
// metrics.textfile is set the registry is written once at exit in the
// node_exporter textfile format.
//
// Metrics:
//   - reposcan_cache_hits_total - content served from the disk cache
//   - reposcan_cache_misses_total - content downloaded from GitHub
//   - reposcan_cache_errors_total{op} - cache read/write/purge failures
//   - reposcan_github_requests_total{operation,outcome} - API calls
//   - reposcan_files_scanned_total - candidate files matched against the token
//   - reposcan_files_matched_total - files with at least one matching line
//   - reposcan_lines_matched_total - matching lines across all files
//   - reposcan_fetch_duration_seconds - content fetch latency
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache operations reported in reposcan_cache_errors_total.
const (
	OpRead  = "read"
	OpWrite = "write"
	OpPurge = "purge"
	OpFlush = "flush"
)

// Request outcomes reported in reposcan_github_requests_total.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeRetry   = "retry"
)

// Metrics holds the counters for one process.
type Metrics struct {
	registry *prometheus.Registry

	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CacheErrorsTotal    *prometheus.CounterVec
	GitHubRequestsTotal *prometheus.CounterVec
	FilesScannedTotal   prometheus.Counter
	FilesMatchedTotal   prometheus.Counter
	LinesMatchedTotal   prometheus.Counter
	FetchDuration       prometheus.Histogram
}

// New registers the reposcan metrics on a fresh registry.
// Each call is independent, so tests never collide on registration.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reposcan_cache_hits_total",
			Help: "Total number of file contents served from the disk cache",
		}),
		CacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reposcan_cache_misses_total",
			Help: "Total number of file contents downloaded because no cache entry matched",
		}),
		CacheErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reposcan_cache_errors_total",
			Help: "Total number of non-fatal cache failures",
		}, []string{"op"}),
		GitHubRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reposcan_github_requests_total",
			Help: "Total number of GitHub API calls",
		}, []string{"operation", "outcome"}),
		FilesScannedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reposcan_files_scanned_total",
			Help: "Total number of candidate files matched against the search token",
		}),
		FilesMatchedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reposcan_files_matched_total",
			Help: "Total number of files with at least one matching line",
		}),
		LinesMatchedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reposcan_lines_matched_total",
			Help: "Total number of matching lines",
		}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reposcan_fetch_duration_seconds",
			Help:    "Duration of content fetches in seconds, cache hits included",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

// RecordCacheError records a failed cache operation.
func (m *Metrics) RecordCacheError(op string) {
	if m == nil {
		return
	}
	m.CacheErrorsTotal.WithLabelValues(op).Inc()
}

// RecordRequest records a GitHub API call.
func (m *Metrics) RecordRequest(operation, outcome string) {
	if m == nil {
		return
	}
	m.GitHubRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordFetch records the latency of one content fetch.
func (m *Metrics) RecordFetch(seconds float64) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(seconds)
}

// RecordScan records one matched candidate file and its matching line count.
func (m *Metrics) RecordScan(matchedLines int) {
	if m == nil {
		return
	}
	m.FilesScannedTotal.Inc()
	if matchedLines > 0 {
		m.FilesMatchedTotal.Inc()
		m.LinesMatchedTotal.Add(float64(matchedLines))
	}
}

// WriteTextfile writes the registry to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
