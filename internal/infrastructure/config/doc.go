// Package config provides 12-factor configuration management for the service.
//
// Configuration is loaded from environment variables with sensible defaults
// and validated before the listener is bound; any error is fatal at startup.
//
// Configuration Sections:
//   - Server: listen address and shutdown timeout
//   - Logging: log level and output format
//   - Tracing: service name, collector endpoint and export queue tuning
//   - Metrics: runtime collectors and summary window
//   - RateLimit: optional per-IP rate limiting
//   - CORS: optional cross-origin headers
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("listening on %s\n", cfg.Server.Addr())
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - SERVICE_NAME, TRACE_ENDPOINT, TRACE_QUEUE_SIZE, TRACE_BATCH_SIZE,
//     TRACE_FLUSH_INTERVAL, TRACE_ENQUEUE_TIMEOUT, TRACE_EXPORT_TIMEOUT, TRACE_COMPRESS
//   - METRICS_RUNTIME, METRICS_WINDOW
//   - RATE_LIMIT_ENABLED, RATE_LIMIT_RPS, RATE_LIMIT_BURST
//   - CORS_ENABLED
package config
