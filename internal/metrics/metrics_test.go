package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.RecordCacheHit()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.CacheHitsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CacheHitsTotal))
}

func TestRecordScan(t *testing.T) {
	m := New()

	m.RecordScan(0)
	m.RecordScan(3)
	m.RecordScan(1)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.FilesScannedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesMatchedTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.LinesMatchedTotal))
}

func TestLabelledCounters(t *testing.T) {
	m := New()

	m.RecordCacheError(OpWrite)
	m.RecordCacheError(OpWrite)
	m.RecordRequest("search.code", OutcomeSuccess)
	m.RecordRequest("search.code", OutcomeRetry)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheErrorsTotal.WithLabelValues(OpWrite)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CacheErrorsTotal.WithLabelValues(OpRead)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GitHubRequestsTotal.WithLabelValues("search.code", OutcomeRetry)))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCacheHit()
		m.RecordCacheMiss()
		m.RecordCacheError(OpRead)
		m.RecordRequest("x", OutcomeError)
		m.RecordFetch(0.1)
		m.RecordScan(2)
	})
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RecordCacheMiss()
	m.RecordFetch(0.02)

	path := filepath.Join(t.TempDir(), "reposcan.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, "reposcan_cache_misses_total 1"))
	assert.Contains(t, out, "reposcan_fetch_duration_seconds_count 1")
}
