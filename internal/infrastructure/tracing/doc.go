/*
Package tracing provides per-request spans and asynchronous span export.

# Overview

A Tracer opens spans, links them into traces and hands finished spans to an
Exporter on a background goroutine. Span and trace identifiers use the
OpenTelemetry types so that W3C trace context can be continued across
process boundaries.

# Propagation

Incoming requests are continued from, in order of preference:
  - traceparent / tracestate (W3C Trace Context)
  - X-Trace-ID / X-Span-ID (hex encoded)

Malformed or missing headers start a new root trace.

# Usage

	tracer := tracing.New("api", tracing.NewLogExporter(logger), logger, tracing.DefaultOptions())
	defer tracer.Shutdown(ctx)

	ctx = tracing.Extract(ctx, r.Header)
	span, ctx := tracer.StartSpan(ctx, "HTTP GET")
	defer tracer.End(span, attribute.String("path", r.URL.Path))

	// scoped child span
	err := tracer.Trace(ctx, "UserRepository::commit", func(ctx context.Context) error {
		return commit(ctx)
	})

# Export

Finished spans go through a bounded queue. A producer waits at most
Options.EnqueueTimeout for room; after that the span is dropped and counted.
The collector goroutine exports batches of up to Options.BatchSize spans,
or whatever has accumulated every Options.FlushInterval. Export errors are
logged and never reach the request path.
*/
package tracing
