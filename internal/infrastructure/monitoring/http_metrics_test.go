package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHTTPMetrics(t *testing.T, window int) (*Registry, *HTTPMetrics) {
	t.Helper()
	reg := NewRegistry()
	metrics, err := NewHTTPMetrics(reg, window)
	require.NoError(t, err)
	return reg, metrics
}

// requestCount returns the number of duration observations for one series.
func requestCount(t *testing.T, reg *Registry, path, method, status string) uint64 {
	t.Helper()
	families, err := reg.Gatherer().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != RequestDuration {
			continue
		}
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			if got["path"] == path && got["method"] == method && got["status"] == status {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		want   StatusClass
	}{
		{100, ClassNone},
		{101, ClassNone},
		{200, ClassSuccess},
		{204, ClassSuccess},
		{299, ClassSuccess},
		{301, ClassNone},
		{304, ClassNone},
		{400, ClassClientError},
		{404, ClassClientError},
		{429, ClassClientError},
		{500, ClassServerError},
		{503, ClassServerError},
		{599, ClassServerError},
		{0, ClassNone},
		{600, ClassNone},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.status), "status %d", tt.status)
	}
	assert.Equal(t, "client_error", ClassClientError.String())
}

func TestNewHTTPMetricsDeclaresSeries(t *testing.T) {
	reg, _ := newHTTPMetrics(t, 8)

	families := parseExposition(t, render(reg))
	require.Contains(t, families, RequestsTotal)
	assert.Equal(t, float64(0), families[RequestsTotal].GetMetric()[0].GetCounter().GetValue())

	// A second set of request metrics on the same registry reuses them.
	_, err := NewHTTPMetrics(reg, 8)
	require.NoError(t, err)
}

func TestNewHTTPMetricsConflict(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(RequestsTotal, KindHistogram, "wrong kind", nil))

	_, err := NewHTTPMetrics(reg, 8)
	var dup *DuplicateMetricError
	assert.ErrorAs(t, err, &dup)
}

func TestRecordClassifiesStatus(t *testing.T) {
	reg, m := newHTTPMetrics(t, 16)

	m.Record("/users", "POST", 200, 3*time.Millisecond)
	m.Record("/missing", "GET", 404, time.Millisecond)
	m.Record("/users", "POST", 503, 40*time.Millisecond)
	m.Record("/switch", "GET", 101, time.Millisecond)
	m.Record("/old", "GET", 302, time.Millisecond)
	m.Record("/weird", "GET", 700, -time.Second)

	assert.Equal(t, float64(6), testutil.ToFloat64(m.total))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.success.WithLabelValues("/users", "POST", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.clientError.WithLabelValues("/missing", "GET", "404")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.serverError.WithLabelValues("/users", "POST", "503")))

	// Only the series touched above exist: 1xx and 3xx have no classified series.
	assert.Equal(t, 1, testutil.CollectAndCount(m.success))
	assert.Equal(t, 1, testutil.CollectAndCount(m.clientError))
	assert.Equal(t, 1, testutil.CollectAndCount(m.serverError))

	assert.Equal(t, uint64(1), requestCount(t, reg, "/switch", "GET", "101"))
	assert.Equal(t, uint64(1), requestCount(t, reg, "/old", "GET", "302"))
	assert.Equal(t, uint64(1), requestCount(t, reg, "/weird", "GET", "700"))

	s := m.Summary()
	assert.Equal(t, uint64(6), s.Requests)
	assert.Equal(t, uint64(1), s.Success)
	assert.Equal(t, uint64(1), s.ClientErrors)
	assert.Equal(t, uint64(1), s.ServerErrors)
	assert.Equal(t, uint64(3), s.Unclassified)
	assert.Equal(t, 6, s.Latency.Samples)
	assert.Equal(t, 0.04, s.Latency.Max)
}

func TestLatencyWindowKeepsMostRecent(t *testing.T) {
	w := NewLatencyWindow(3)
	assert.Empty(t, w.Values())

	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Add(v)
	}

	assert.ElementsMatch(t, []float64{3, 4, 5}, w.Values())
	assert.Len(t, NewLatencyWindow(0).samples, 1)
}

func TestSummaryStatistics(t *testing.T) {
	_, m := newHTTPMetrics(t, 100)

	for i := 1; i <= 100; i++ {
		m.Record("/healthz", "GET", 200, time.Duration(i)*time.Millisecond)
	}

	s := m.Summary()
	assert.Equal(t, 100, s.Latency.Samples)
	assert.InDelta(t, 0.0505, s.Latency.Mean, 1e-9)
	assert.InDelta(t, 0.05, s.Latency.P50, 0.002)
	assert.InDelta(t, 0.095, s.Latency.P95, 0.002)
	assert.InDelta(t, 0.099, s.Latency.P99, 0.002)
	assert.InDelta(t, 0.1, s.Latency.Max, 1e-9)
	assert.Greater(t, s.Latency.StdDev, 0.0)
}

func TestSummarySingleSample(t *testing.T) {
	_, m := newHTTPMetrics(t, 4)
	m.Record("/healthz", "GET", 200, 10*time.Millisecond)

	s := m.Summary().Latency
	assert.Equal(t, 1, s.Samples)
	assert.InDelta(t, 0.01, s.Mean, 1e-9)
	assert.Zero(t, s.StdDev)
	assert.InDelta(t, 0.01, s.P99, 1e-9)
}
