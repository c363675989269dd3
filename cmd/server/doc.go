// Package main is the entry point for the telemetry API server.
//
// The server exposes a small user API and instruments every request:
//
//	client → Recovery → request metrics + span → request log → handlers
//	                                                           → /metrics
//
// It provides:
//   - Prometheus text exposition on /metrics
//   - Request totals and latency percentiles on /metrics/summary
//   - W3C and X-Trace-ID/X-Span-ID trace propagation
//   - Batched span export to a collector, or to the log when none is set
//
// Configuration comes from environment variables (12-factor), for example:
//
//	PORT=8080 LOG_LEVEL=debug TRACE_ENDPOINT=http://collector:4318/spans ./server
//
// Signals:
//   - SIGINT, SIGTERM: stop accepting requests, drain, then flush spans
package main
