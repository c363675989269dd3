package tracing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/resilience"
)

var (
	ErrExportRejected = errors.New("span batch rejected by collector")
	ErrExporterClosed = errors.New("span exporter is shut down")
)

// HTTPExporterConfig configures the HTTP span exporter.
type HTTPExporterConfig struct {
	Endpoint     string
	Service      string
	Compress     bool
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Headers      map[string]string

	// Breaker guards the collector. Nil uses a breaker that opens after
	// five consecutive failed batches.
	Breaker *resilience.Breaker
}

// HTTPExporter posts span batches as JSON to a collector endpoint.
type HTTPExporter struct {
	endpoint string
	service  string
	compress bool

	client  *resty.Client
	retry   *retryablehttp.Client
	breaker *resilience.Breaker
	logger  *zap.Logger
	closed  atomic.Bool
}

// NewHTTPExporter validates cfg and builds the exporter client.
func NewHTTPExporter(cfg HTTPExporterConfig, logger *zap.Logger) (*HTTPExporter, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid trace endpoint %q: %w", cfg.Endpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid trace endpoint %q: want an absolute http(s) URL", cfg.Endpoint)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = 100 * time.Millisecond
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = 2 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = nil

	client := resty.New().
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient}).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "telemetry-api-exporter/1.0").
		SetHeader("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		client.SetHeader(k, v)
	}

	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.New("span-exporter", resilience.Settings{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to resilience.State) {
				logger.Warn("span exporter breaker state changed",
					zap.String("breaker", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		})
	}

	return &HTTPExporter{
		endpoint: u.String(),
		service:  cfg.Service,
		compress: cfg.Compress,
		client:   client,
		retry:    retryClient,
		breaker:  breaker,
		logger:   logger,
	}, nil
}

type spanRecord struct {
	TraceID    string            `json:"trace_id"`
	SpanID     string            `json:"span_id"`
	ParentID   string            `json:"parent_id,omitempty"`
	Name       string            `json:"name"`
	Service    string            `json:"service"`
	Start      int64             `json:"start_unix_nano"`
	Duration   int64             `json:"duration_nano"`
	Status     int               `json:"status,omitempty"`
	Error      string            `json:"error,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type spanBatch struct {
	Service string       `json:"service"`
	Spans   []spanRecord `json:"spans"`
}

func newSpanRecord(span *Span) spanRecord {
	rec := spanRecord{
		TraceID:    span.TraceID.String(),
		SpanID:     span.SpanID.String(),
		Name:       span.Name,
		Service:    span.Service,
		Start:      span.StartTime.UnixNano(),
		Duration:   span.Duration.Nanoseconds(),
		Status:     span.StatusCode,
		Attributes: span.Attributes,
	}
	if span.ParentID.IsValid() {
		rec.ParentID = span.ParentID.String()
	}
	if span.Error != nil {
		rec.Error = span.Error.Error()
	}
	return rec
}

// ExportSpans encodes the batch and posts it. A batch is never split.
func (e *HTTPExporter) ExportSpans(ctx context.Context, spans []*Span) error {
	if e.closed.Load() {
		return ErrExporterClosed
	}
	if len(spans) == 0 {
		return nil
	}
	// Skip encoding while the collector is known to be down.
	if !e.breaker.Allow() {
		return resilience.ErrCircuitOpen
	}

	body, err := e.encode(spans)
	if err != nil {
		return err
	}

	return e.breaker.Execute(func() error {
		req := e.client.R().SetContext(ctx).SetBody(body)
		if e.compress {
			req.SetHeader("Content-Encoding", "gzip")
		}

		resp, err := req.Post(e.endpoint)
		if err != nil {
			return fmt.Errorf("post spans: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("%w: %s", ErrExportRejected, resp.Status())
		}
		return nil
	})
}

func (e *HTTPExporter) encode(spans []*Span) ([]byte, error) {
	batch := spanBatch{
		Service: e.service,
		Spans:   make([]spanRecord, 0, len(spans)),
	}
	for _, span := range spans {
		batch.Spans = append(batch.Spans, newSpanRecord(span))
	}

	data, err := sonic.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode spans: %w", err)
	}
	if !e.compress {
		return data, nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, fmt.Errorf("compress spans: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("compress spans: %w", err)
	}
	return buf.Bytes(), nil
}

// BreakerState reports whether the collector is currently considered down.
func (e *HTTPExporter) BreakerState() resilience.State {
	return e.breaker.State()
}

// Shutdown rejects further batches and releases idle connections.
func (e *HTTPExporter) Shutdown(context.Context) error {
	if e.closed.Swap(true) {
		return nil
	}
	e.retry.HTTPClient.CloseIdleConnections()
	return nil
}
