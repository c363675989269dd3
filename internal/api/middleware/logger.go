package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/telemetry-api/internal/shared/id"
)

// RequestIDHeader carries a caller supplied request id. It is only logged.
const RequestIDHeader = "X-Request-ID"

// RequestLogger logs one line per request through zap. Requests to
// skipPaths are not logged. Requests without an X-Request-ID header get a
// generated id in the log line; the response is left alone.
func RequestLogger(logger *zap.Logger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if _, ok := skip[path]; ok {
			return
		}

		status := c.Writer.Status()
		level := zapcore.InfoLevel
		switch {
		case status >= 500:
			level = zapcore.ErrorLevel
		case status >= 400:
			level = zapcore.WarnLevel
		}

		ce := logger.Check(level, "request")
		if ce == nil {
			return
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("size", c.Writer.Size()),
			zap.String("request_id", requestID(c.Request.Header.Get(RequestIDHeader))),
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if traceID := tracing.TraceIDFromContext(c.Request.Context()); traceID.IsValid() {
			fields = append(fields, zap.String("trace_id", traceID.String()))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.ByType(gin.ErrorTypeAny).String()))
		}

		ce.Write(fields...)
	}
}

func requestID(header string) string {
	if header != "" && len(header) <= 128 {
		return header
	}
	return id.NewRequestID().String()
}
