// Package middleware provides the edge middleware of the HTTP API.
//
// Middleware stack includes:
//   - RequestLogger: one zap line per request with the trace id
//   - CORS: Cross-origin resource sharing with configurable origins
//   - RateLimit: Per-IP token bucket rate limiting
//
// These run inside the request instrumentation, so a 429 from the rate
// limiter or a CORS preflight is counted like any other response.
//
// Rate Limiting:
//   - Per-IP token bucket with idle client eviction
//   - Configurable RPS and burst capacity
//   - Global rate limiting option
//
// Example Usage:
//
//	router.Use(middleware.RequestLogger(logger, "/metrics"))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
