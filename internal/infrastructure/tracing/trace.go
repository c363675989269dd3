package tracing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/telemetry-api/internal/shared/id"
)

// Options tunes the export pipeline.
type Options struct {
	QueueSize      int
	BatchSize      int
	FlushInterval  time.Duration
	EnqueueTimeout time.Duration
	ExportTimeout  time.Duration
}

// DefaultOptions returns the export settings used in production.
func DefaultOptions() Options {
	return Options{
		QueueSize:      1000,
		BatchSize:      128,
		FlushInterval:  2 * time.Second,
		EnqueueTimeout: 5 * time.Millisecond,
		ExportTimeout:  5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.QueueSize <= 0 {
		o.QueueSize = d.QueueSize
	}
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = d.FlushInterval
	}
	if o.EnqueueTimeout < 0 {
		o.EnqueueTimeout = 0
	}
	if o.ExportTimeout <= 0 {
		o.ExportTimeout = d.ExportTimeout
	}
	return o
}

// Tracer manages distributed tracing
type Tracer struct {
	service  string
	logger   *zap.Logger
	exporter Exporter
	opts     Options

	spans    chan *Span
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// mu orders sends on spans before the close of stop, so the collector's
	// final drain sees every accepted span.
	mu      sync.RWMutex
	stopped bool

	dropped  atomic.Uint64
	exported atomic.Uint64
}

// New creates a tracer and starts its span collector.
func New(service string, exporter Exporter, logger *zap.Logger, opts Options) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exporter == nil {
		exporter = NewLogExporter(logger)
	}
	opts = opts.withDefaults()

	t := &Tracer{
		service:  service,
		logger:   logger,
		exporter: exporter,
		opts:     opts,
		spans:    make(chan *Span, opts.QueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go t.collectSpans()

	return t
}

// Service returns the service name stamped on spans.
func (t *Tracer) Service() string {
	return t.service
}

// StartSpan creates a new span. The parent is the span already carried by
// ctx, else a remote span context extracted from headers; without either
// the span starts a new trace.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	span := &Span{
		SpanID:     id.NewSpanID(),
		Name:       name,
		Service:    t.service,
		StartTime:  time.Now(),
		Attributes: make(map[string]string),
	}

	if parent := SpanFromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	} else if sc := trace.SpanContextFromContext(ctx); sc.IsValid() && sc.IsRemote() {
		span.TraceID = sc.TraceID()
		span.ParentID = sc.SpanID()
		span.Remote = true
	} else {
		span.TraceID = id.NewTraceID()
	}

	return span, ContextWithSpan(ctx, span)
}

// End finishes the span with the given attributes and queues it for
// export. Ending a span twice is a no-op.
func (t *Tracer) End(span *Span, attrs ...attribute.KeyValue) {
	if span == nil || !span.finish(attrs) {
		return
	}
	t.Submit(span)
}

// Trace runs fn inside a child span. The span is ended on every exit path;
// a panic in fn is recorded and re-raised.
func (t *Tracer) Trace(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	span, ctx := t.StartSpan(ctx, name)
	defer func() {
		if r := recover(); r != nil {
			span.SetError(fmt.Errorf("panic: %v", r))
			t.End(span)
			panic(r)
		}
		span.SetError(err)
		t.End(span)
	}()

	return fn(ctx)
}

// Submit sends a span to the collector. It waits at most
// Options.EnqueueTimeout for queue space, then drops the span.
func (t *Tracer) Submit(span *Span) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.stopped {
		t.drop(span, "tracer stopped")
		return
	}

	select {
	case t.spans <- span:
		return
	default:
	}

	if t.opts.EnqueueTimeout > 0 {
		timer := time.NewTimer(t.opts.EnqueueTimeout)
		defer timer.Stop()

		select {
		case t.spans <- span:
			return
		case <-timer.C:
		}
	}

	t.drop(span, "span buffer full")
}

func (t *Tracer) drop(span *Span, reason string) {
	t.dropped.Add(1)
	t.logger.Warn("dropping span",
		zap.String("reason", reason),
		zap.String("trace_id", span.TraceID.String()),
		zap.String("span_id", span.SpanID.String()),
	)
}

// Dropped returns the number of spans discarded without export.
func (t *Tracer) Dropped() uint64 {
	return t.dropped.Load()
}

// Exported returns the number of spans handed to the exporter successfully.
func (t *Tracer) Exported() uint64 {
	return t.exported.Load()
}

// collectSpans batches completed spans for the exporter
func (t *Tracer) collectSpans() {
	defer close(t.done)

	ticker := time.NewTicker(t.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]*Span, 0, t.opts.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		t.export(batch)
		batch = make([]*Span, 0, t.opts.BatchSize)
	}

	for {
		select {
		case span := <-t.spans:
			batch = append(batch, span)
			if len(batch) >= t.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-t.stop:
			for {
				select {
				case span := <-t.spans:
					batch = append(batch, span)
					if len(batch) >= t.opts.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (t *Tracer) export(batch []*Span) {
	ctx, cancel := context.WithTimeout(context.Background(), t.opts.ExportTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("span exporter panicked",
				zap.Int("spans", len(batch)),
				zap.Any("panic", r),
			)
		}
	}()

	if err := t.exporter.ExportSpans(ctx, batch); err != nil {
		t.logger.Warn("span export failed",
			zap.Int("spans", len(batch)),
			zap.Error(err),
		)
		return
	}
	t.exported.Add(uint64(len(batch)))
}

// Shutdown stops accepting spans, exports what is queued and shuts the
// exporter down. It waits for in-flight Submit calls, each bounded by
// Options.EnqueueTimeout, and returns ctx.Err() if the flush does not
// finish in time.
func (t *Tracer) Shutdown(ctx context.Context) error {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		close(t.stop)
		t.mu.Unlock()
	})

	select {
	case <-t.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return t.exporter.Shutdown(ctx)
}
