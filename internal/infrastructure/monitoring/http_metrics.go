package monitoring

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/stat"
)

// Request metric names.
const (
	RequestsTotal       = "http_requests_total"
	RequestsSuccess     = "http_requests_2xx_total"
	RequestsClientError = "http_requests_4xx_total"
	RequestsServerError = "http_requests_5xx_total"
	RequestDuration     = "http_requests_duration_seconds"
)

// RequestDurationBuckets are the latency buckets in seconds.
var RequestDurationBuckets = []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 0.7, 1, 2}

var requestLabels = []string{"path", "method", "status"}

// StatusClass groups response codes for the classified counters.
type StatusClass int

const (
	ClassNone StatusClass = iota // 1xx, 3xx and anything out of range
	ClassSuccess
	ClassClientError
	ClassServerError
)

// Classify maps a status code to its counter class.
func Classify(status int) StatusClass {
	switch {
	case status >= 200 && status < 300:
		return ClassSuccess
	case status >= 400 && status < 500:
		return ClassClientError
	case status >= 500 && status < 600:
		return ClassServerError
	default:
		return ClassNone
	}
}

func (c StatusClass) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassClientError:
		return "client_error"
	case ClassServerError:
		return "server_error"
	default:
		return "unclassified"
	}
}

// HTTPMetrics records the per-request metrics. Vector handles are resolved
// once at construction so recording never looks a name up.
type HTTPMetrics struct {
	total       prometheus.Counter
	success     *prometheus.CounterVec
	clientError *prometheus.CounterVec
	serverError *prometheus.CounterVec
	duration    *prometheus.HistogramVec

	classes [4]atomic.Uint64
	window  *LatencyWindow
}

// NewHTTPMetrics registers the request metrics on reg. window is the number
// of recent latencies kept for Summary.
func NewHTTPMetrics(reg *Registry, window int) (*HTTPMetrics, error) {
	defs := []struct {
		name    string
		kind    Kind
		help    string
		labels  []string
		buckets []float64
	}{
		{RequestsTotal, KindCounter, "Total number of HTTP requests", nil, nil},
		{RequestsSuccess, KindCounter, "Number of HTTP requests answered with a 2xx status", requestLabels, nil},
		{RequestsClientError, KindCounter, "Number of HTTP requests answered with a 4xx status", requestLabels, nil},
		{RequestsServerError, KindCounter, "Number of HTTP requests answered with a 5xx status", requestLabels, nil},
		{RequestDuration, KindHistogram, "HTTP request duration in seconds", requestLabels, RequestDurationBuckets},
	}
	for _, d := range defs {
		if err := reg.Register(d.name, d.kind, d.help, d.labels, d.buckets...); err != nil {
			return nil, fmt.Errorf("failed to register request metrics: %w", err)
		}
	}

	m := &HTTPMetrics{window: NewLatencyWindow(window)}

	total, err := reg.counterVec(RequestsTotal)
	if err != nil {
		return nil, err
	}
	// Unlabelled, so the series exists (at zero) before the first request.
	m.total = total.WithLabelValues()

	if m.success, err = reg.counterVec(RequestsSuccess); err != nil {
		return nil, err
	}
	if m.clientError, err = reg.counterVec(RequestsClientError); err != nil {
		return nil, err
	}
	if m.serverError, err = reg.counterVec(RequestsServerError); err != nil {
		return nil, err
	}
	if m.duration, err = reg.histogramVec(RequestDuration); err != nil {
		return nil, err
	}

	return m, nil
}

// Record accounts for one completed request.
func (m *HTTPMetrics) Record(path, method string, status int, elapsed time.Duration) {
	if elapsed < 0 {
		elapsed = 0
	}
	code := strconv.Itoa(status)
	class := Classify(status)

	switch class {
	case ClassSuccess:
		m.success.WithLabelValues(path, method, code).Inc()
	case ClassClientError:
		m.clientError.WithLabelValues(path, method, code).Inc()
	case ClassServerError:
		m.serverError.WithLabelValues(path, method, code).Inc()
	}
	m.classes[class].Add(1)

	m.total.Inc()

	seconds := elapsed.Seconds()
	m.duration.WithLabelValues(path, method, code).Observe(seconds)
	m.window.Add(seconds)
}

// LatencyWindow keeps the most recent request latencies in a fixed ring.
// Writers never block each other; a reader may see a slot that is being
// overwritten, which only shifts the summary by one sample.
type LatencyWindow struct {
	samples []atomic.Uint64
	next    atomic.Uint64
}

// NewLatencyWindow creates a window holding size samples (minimum 1).
func NewLatencyWindow(size int) *LatencyWindow {
	if size < 1 {
		size = 1
	}
	return &LatencyWindow{samples: make([]atomic.Uint64, size)}
}

// Add stores a sample, evicting the oldest when full.
func (w *LatencyWindow) Add(v float64) {
	i := w.next.Add(1) - 1
	w.samples[i%uint64(len(w.samples))].Store(math.Float64bits(v))
}

// Values returns a copy of the samples currently held.
func (w *LatencyWindow) Values() []float64 {
	n := min(w.next.Load(), uint64(len(w.samples)))
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(w.samples[i].Load())
	}
	return out
}

// LatencySummary describes the latency window in seconds.
type LatencySummary struct {
	Samples int     `json:"samples"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"stddev"`
	P50     float64 `json:"p50"`
	P95     float64 `json:"p95"`
	P99     float64 `json:"p99"`
	Max     float64 `json:"max"`
}

// Summary is the JSON view served next to the Prometheus endpoint.
type Summary struct {
	Requests      uint64         `json:"requests_total"`
	Success       uint64         `json:"success_total"`
	ClientErrors  uint64         `json:"client_errors_total"`
	ServerErrors  uint64         `json:"server_errors_total"`
	Unclassified  uint64         `json:"unclassified_total"`
	Latency       LatencySummary `json:"latency_seconds"`
	DroppedSpans  uint64         `json:"dropped_spans"`
	ExportedSpans uint64         `json:"exported_spans"`
}

// Summary computes request totals and latency statistics.
func (m *HTTPMetrics) Summary() Summary {
	s := Summary{
		Success:      m.classes[ClassSuccess].Load(),
		ClientErrors: m.classes[ClassClientError].Load(),
		ServerErrors: m.classes[ClassServerError].Load(),
		Unclassified: m.classes[ClassNone].Load(),
		Latency:      summarize(m.window.Values()),
	}
	s.Requests = s.Success + s.ClientErrors + s.ServerErrors + s.Unclassified
	return s
}

func summarize(samples []float64) LatencySummary {
	if len(samples) == 0 {
		return LatencySummary{}
	}
	slices.Sort(samples)

	ls := LatencySummary{
		Samples: len(samples),
		P50:     stat.Quantile(0.50, stat.Empirical, samples, nil),
		P95:     stat.Quantile(0.95, stat.Empirical, samples, nil),
		P99:     stat.Quantile(0.99, stat.Empirical, samples, nil),
		Max:     samples[len(samples)-1],
	}
	if len(samples) == 1 {
		ls.Mean = samples[0]
		return ls
	}
	ls.Mean, ls.StdDev = stat.MeanStdDev(samples, nil)
	return ls
}
