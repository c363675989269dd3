package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/GriffinCanCode/telemetry-api/internal/shared/id"
)

func newTestSpan() *Span {
	return &Span{
		TraceID:    id.NewTraceID(),
		SpanID:     id.NewSpanID(),
		Name:       "HTTP GET",
		StartTime:  time.Now(),
		Attributes: make(map[string]string),
	}
}

func TestSpanFinishOnce(t *testing.T) {
	span := newTestSpan()

	assert.True(t, span.finish([]attribute.KeyValue{attribute.String("path", "/healthz")}))
	assert.False(t, span.finish([]attribute.KeyValue{attribute.String("path", "/other")}))

	path, _ := span.Attribute("path")
	assert.Equal(t, "/healthz", path)
	assert.True(t, span.Ended())

	span.SetStatus(500)
	span.SetError(errors.New("late"))
	assert.Zero(t, span.StatusCode)
	assert.NoError(t, span.Error)
}

func TestSpanClampsClockSkew(t *testing.T) {
	span := newTestSpan()
	span.StartTime = time.Now().Add(time.Hour)

	span.finish(nil)
	assert.Equal(t, time.Duration(0), span.Duration)
}

func TestSpanContext(t *testing.T) {
	span := newTestSpan()
	sc := span.SpanContext()

	assert.True(t, sc.IsValid())
	assert.True(t, sc.IsSampled())
	assert.False(t, sc.IsRemote())
	assert.Equal(t, span.TraceID, sc.TraceID())
	assert.Contains(t, span.String(), span.SpanID.String())
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, SpanFromContext(ctx))
	assert.Equal(t, trace.TraceID{}, TraceIDFromContext(ctx))

	span := newTestSpan()
	ctx = ContextWithSpan(ctx, span)
	assert.Same(t, span, SpanFromContext(ctx))
	assert.Equal(t, span.TraceID, TraceIDFromContext(ctx))
}
