package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/tracing"
)

// Middleware creates a Gin middleware that records request metrics and
// wraps the request in a span. The response is never modified, and a
// failure inside the instrumentation is logged instead of reaching the
// client. tracer may be nil to record metrics only.
//
// A panic in a downstream handler is recorded as a 500 and re-raised for
// the outer recovery middleware.
func Middleware(metrics *HTTPMetrics, tracer *tracing.Tracer, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	in := &instrumentation{metrics: metrics, tracer: tracer, logger: logger}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		span := in.begin(c)

		panicked := true
		defer func() {
			if panicked {
				in.finish(c, span, path, method, start, http.StatusInternalServerError)
			}
		}()

		c.Next()
		panicked = false

		in.finish(c, span, path, method, start, 0)
	}
}

type instrumentation struct {
	metrics *HTTPMetrics
	tracer  *tracing.Tracer
	logger  *zap.Logger
}

// begin opens the request span and makes it the parent of downstream spans.
func (in *instrumentation) begin(c *gin.Context) (span *tracing.Span) {
	if in.tracer == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			in.logger.Error("failed to start request span",
				zap.Any("panic", r),
				zap.String("path", c.Request.URL.Path),
			)
			span = nil
		}
	}()

	ctx := in.tracer.Extract(c.Request.Context(), c.Request.Header)
	span, ctx = in.tracer.StartSpan(ctx, "HTTP "+c.Request.Method)
	c.Request = c.Request.WithContext(ctx)
	return span
}

// finish runs after the handler chain has produced the response. A non-zero
// status overrides the one written by the handler. The span is ended even
// when recording fails.
func (in *instrumentation) finish(c *gin.Context, span *tracing.Span, path, method string, start time.Time, status int) {
	attrs := []attribute.KeyValue{
		attribute.String("path", path),
		attribute.String("method", method),
	}
	defer func() {
		defer in.recoverFailure(path, method)
		in.endSpan(span, attrs...)
	}()
	defer in.recoverFailure(path, method)

	elapsed := time.Since(start)
	if elapsed < 0 {
		elapsed = 0
	}

	if err := c.Request.Context().Err(); err != nil && status == 0 && !c.Writer.Written() {
		in.logger.Debug("request cancelled before a response was written",
			zap.String("path", path),
			zap.String("method", method),
			zap.Bool("deadline", errors.Is(err, context.DeadlineExceeded)),
			zap.Duration("elapsed", elapsed),
		)
		attrs = append(attrs, attribute.Bool("cancelled", true))
		return
	}

	if status == 0 {
		status = c.Writer.Status()
	}
	attrs = append(attrs, attribute.Int("status", status))

	if span != nil {
		span.SetStatus(status)
		switch {
		case len(c.Errors) > 0:
			span.SetError(c.Errors.Last())
		case status >= http.StatusInternalServerError:
			span.SetError(errors.New(http.StatusText(status)))
		}
	}

	if in.metrics != nil {
		in.metrics.Record(path, method, status, elapsed)
	}
}

func (in *instrumentation) recoverFailure(path, method string) {
	if r := recover(); r != nil {
		in.logger.Error("request instrumentation failed",
			zap.Any("panic", r),
			zap.String("path", path),
			zap.String("method", method),
		)
	}
}

func (in *instrumentation) endSpan(span *tracing.Span, attrs ...attribute.KeyValue) {
	if in.tracer == nil || span == nil {
		return
	}
	in.tracer.End(span, attrs...)
}
