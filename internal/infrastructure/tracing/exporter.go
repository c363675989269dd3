package tracing

import (
	"context"

	"go.uber.org/zap"
)

// Exporter ships finished spans to a tracing backend. ExportSpans is only
// called from the tracer's collector goroutine.
type Exporter interface {
	ExportSpans(ctx context.Context, spans []*Span) error
	Shutdown(ctx context.Context) error
}

// LogExporter writes one structured log line per span.
type LogExporter struct {
	logger *zap.Logger
}

// NewLogExporter creates an exporter that logs spans through logger.
func NewLogExporter(logger *zap.Logger) *LogExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogExporter{logger: logger}
}

// ExportSpans logs each span in the batch.
func (e *LogExporter) ExportSpans(_ context.Context, spans []*Span) error {
	for _, span := range spans {
		e.logSpan(span)
	}
	return nil
}

func (e *LogExporter) logSpan(span *Span) {
	fields := []zap.Field{
		zap.String("trace_id", span.TraceID.String()),
		zap.String("span_id", span.SpanID.String()),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.String("service", span.Service),
	}

	if span.ParentID.IsValid() {
		fields = append(fields, zap.String("parent_id", span.ParentID.String()))
	}
	if span.StatusCode != 0 {
		fields = append(fields, zap.Int("status", span.StatusCode))
	}
	for k, v := range span.Attributes {
		fields = append(fields, zap.String("attr."+k, v))
	}

	if span.Error != nil {
		fields = append(fields, zap.Error(span.Error))
		e.logger.Error("span completed with error", fields...)
	} else {
		e.logger.Info("span completed", fields...)
	}
}

// Shutdown flushes the logger.
func (e *LogExporter) Shutdown(context.Context) error {
	_ = e.logger.Sync()
	return nil
}
