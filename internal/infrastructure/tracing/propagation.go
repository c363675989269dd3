package tracing

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Legacy headers accepted when no traceparent is present.
const (
	TraceIDHeader = "X-Trace-ID"
	SpanIDHeader  = "X-Span-ID"
)

var w3c = propagation.TraceContext{}

// Extract returns ctx carrying the remote parent found in h. W3C
// traceparent wins over the legacy X-Trace-ID/X-Span-ID pair. Absent or
// malformed headers leave ctx unchanged so the next span starts a new trace.
func Extract(ctx context.Context, h http.Header) context.Context {
	if h == nil {
		return ctx
	}

	if extracted := w3c.Extract(ctx, propagation.HeaderCarrier(h)); trace.SpanContextFromContext(extracted).IsValid() {
		return extracted
	}

	traceID, err := trace.TraceIDFromHex(strings.TrimSpace(h.Get(TraceIDHeader)))
	if err != nil {
		return ctx
	}
	spanID, err := trace.SpanIDFromHex(strings.TrimSpace(h.Get(SpanIDHeader)))
	if err != nil {
		return ctx
	}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}

// Inject writes the current span of ctx into h as a W3C traceparent, for
// calls to downstream services.
func Inject(ctx context.Context, h http.Header) {
	span := SpanFromContext(ctx)
	if span == nil {
		return
	}
	ctx = trace.ContextWithSpanContext(ctx, span.SpanContext())
	w3c.Inject(ctx, propagation.HeaderCarrier(h))
}

// Extract is a convenience wrapper around the package level Extract.
func (t *Tracer) Extract(ctx context.Context, h http.Header) context.Context {
	return Extract(ctx, h)
}
