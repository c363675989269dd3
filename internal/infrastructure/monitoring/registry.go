package monitoring

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// Kind is the type of a registered metric.
type Kind int

const (
	KindCounter Kind = iota
	KindHistogram
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Labels identifies one series of a metric. Keys must match the label
// names given at registration.
type Labels map[string]string

// DefaultBuckets is used for histograms registered without buckets.
var DefaultBuckets = prometheus.DefBuckets

var (
	ErrKindMismatch       = errors.New("metric kind mismatch")
	ErrInvalidObservation = errors.New("observation must be finite and non-negative")
	ErrInvalidBuckets     = errors.New("histogram buckets must be strictly increasing")
	ErrReservedLabel      = errors.New("label name is reserved")
)

// DuplicateMetricError is returned when a name is registered again with a
// different shape.
type DuplicateMetricError struct {
	Name      string
	Existing  Kind
	Requested Kind
}

func (e *DuplicateMetricError) Error() string {
	if e.Existing == e.Requested {
		return fmt.Sprintf("metric %q already registered as %s with different labels", e.Name, e.Existing)
	}
	return fmt.Sprintf("metric %q already registered as %s, not %s", e.Name, e.Existing, e.Requested)
}

// UnknownMetricError is returned when recording to a name that was never
// registered.
type UnknownMetricError struct {
	Name string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("metric %q is not registered", e.Name)
}

type metric struct {
	name      string
	kind      Kind
	labels    []string
	counter   *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// Registry records counters and histograms and renders them in the
// Prometheus text format. The zero value is not usable; use NewRegistry.
type Registry struct {
	prom *prometheus.Registry

	// mu serializes registration only. Lookups on the record path go
	// through metrics without locking.
	mu      sync.Mutex
	metrics sync.Map // name -> *metric
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRuntimeCollectors adds the Go runtime and process collectors.
func WithRuntimeCollectors() RegistryOption {
	return func(r *Registry) {
		r.prom.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

// NewRegistry creates an empty registry backed by a private Prometheus
// registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{prom: prometheus.NewRegistry()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register declares a metric. Registering the same name, kind and label
// names again is a no-op.
func (r *Registry) Register(name string, kind Kind, help string, labelNames []string, buckets ...float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.metrics.Load(name); ok {
		existing := v.(*metric)
		if existing.kind == kind && slices.Equal(existing.labels, labelNames) {
			return nil
		}
		return &DuplicateMetricError{Name: name, Existing: existing.kind, Requested: kind}
	}

	if help == "" {
		help = name
	}
	m := &metric{
		name:   name,
		kind:   kind,
		labels: slices.Clone(labelNames),
	}

	var collector prometheus.Collector
	switch kind {
	case KindCounter:
		m.counter = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, m.labels)
		collector = m.counter
	case KindHistogram:
		if slices.Contains(m.labels, model.BucketLabel) {
			return fmt.Errorf("register %s: %w: %q on a histogram", name, ErrReservedLabel, model.BucketLabel)
		}
		if len(buckets) == 0 {
			buckets = DefaultBuckets
		}
		if err := validateBuckets(buckets); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
		m.histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    help,
			Buckets: slices.Clone(buckets),
		}, m.labels)
		collector = m.histogram
	default:
		return fmt.Errorf("register %s: unsupported metric kind %d", name, kind)
	}

	if err := r.prom.Register(collector); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}

	r.metrics.Store(name, m)
	return nil
}

func validateBuckets(buckets []float64) error {
	for i, b := range buckets {
		if math.IsNaN(b) {
			return ErrInvalidBuckets
		}
		if i > 0 && b <= buckets[i-1] {
			return ErrInvalidBuckets
		}
	}
	return nil
}

func (r *Registry) lookup(name string) (*metric, error) {
	v, ok := r.metrics.Load(name)
	if !ok {
		return nil, &UnknownMetricError{Name: name}
	}
	return v.(*metric), nil
}

// Increment adds delta to the counter series identified by labels.
func (r *Registry) Increment(name string, labels Labels, delta uint64) error {
	m, err := r.lookup(name)
	if err != nil {
		return err
	}
	if m.kind != KindCounter {
		return fmt.Errorf("%w: %s is a %s", ErrKindMismatch, name, m.kind)
	}

	c, err := m.counter.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return fmt.Errorf("increment %s: %w", name, err)
	}
	c.Add(float64(delta))
	return nil
}

// Observe records value into the histogram series identified by labels.
func (r *Registry) Observe(name string, labels Labels, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return fmt.Errorf("observe %s: %w (got %v)", name, ErrInvalidObservation, value)
	}

	m, err := r.lookup(name)
	if err != nil {
		return err
	}
	if m.kind != KindHistogram {
		return fmt.Errorf("%w: %s is a %s", ErrKindMismatch, name, m.kind)
	}

	o, err := m.histogram.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return fmt.Errorf("observe %s: %w", name, err)
	}
	o.Observe(value)
	return nil
}

// Render yields the text exposition of the current state, one line at a
// time without the trailing newline. Each iteration takes a fresh snapshot.
func (r *Registry) Render() iter.Seq[string] {
	return func(yield func(string) bool) {
		families, _ := r.prom.Gather()

		var buf bytes.Buffer
		for _, mf := range families {
			buf.Reset()
			if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
				continue
			}
			for line := range strings.Lines(buf.String()) {
				if !yield(strings.TrimSuffix(line, "\n")) {
					return
				}
			}
		}
	}
}

// WriteText writes the rendered exposition to w.
func (r *Registry) WriteText(w io.Writer) error {
	for line := range r.Render() {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// ContentType is the media type of the text exposition.
func (r *Registry) ContentType() string {
	return string(expfmt.NewFormat(expfmt.TypeTextPlain))
}

// Gatherer exposes the underlying registry to Prometheus tooling.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.prom
}

func (r *Registry) counterVec(name string) (*prometheus.CounterVec, error) {
	m, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if m.kind != KindCounter {
		return nil, fmt.Errorf("%w: %s is a %s", ErrKindMismatch, name, m.kind)
	}
	return m.counter, nil
}

func (r *Registry) histogramVec(name string) (*prometheus.HistogramVec, error) {
	m, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if m.kind != KindHistogram {
		return nil, fmt.Errorf("%w: %s is a %s", ErrKindMismatch, name, m.kind)
	}
	return m.histogram, nil
}
