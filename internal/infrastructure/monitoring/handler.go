package monitoring

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/tracing"
)

// Handler serves the registry in the Prometheus text format. It only reads
// the registry.
func Handler(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", reg.ContentType())
		c.Status(http.StatusOK)
		if err := reg.WriteText(c.Writer); err != nil {
			_ = c.Error(err)
		}
	}
}

// SummaryHandler serves request totals, latency statistics and span export
// counters as JSON. tracer may be nil.
func SummaryHandler(metrics *HTTPMetrics, tracer *tracing.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary := metrics.Summary()
		if tracer != nil {
			summary.DroppedSpans = tracer.Dropped()
			summary.ExportedSpans = tracer.Exported()
		}
		c.JSON(http.StatusOK, summary)
	}
}
