package tracing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span represents a single operation in a trace
type Span struct {
	TraceID    trace.TraceID
	SpanID     trace.SpanID
	ParentID   trace.SpanID
	Remote     bool // ParentID belongs to another process
	Name       string
	Service    string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Attributes map[string]string
	Error      error
	StatusCode int

	mu    sync.Mutex
	ended bool
}

// IsRoot reports whether the span starts its trace.
func (s *Span) IsRoot() bool {
	return !s.ParentID.IsValid()
}

// SpanContext returns the immutable identity of the span.
func (s *Span) SpanContext() trace.SpanContext {
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    s.TraceID,
		SpanID:     s.SpanID,
		TraceFlags: trace.FlagsSampled,
	})
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(kv attribute.KeyValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.Attributes[string(kv.Key)] = kv.Value.Emit()
}

// SetError records an error in the span
func (s *Span) SetError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.Error = err
}

// SetStatus sets the HTTP status code
func (s *Span) SetStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.StatusCode = code
}

// Ended reports whether End has been called.
func (s *Span) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Attribute returns a recorded attribute value.
func (s *Span) Attribute(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Attributes[key]
	return v, ok
}

// finish stamps the end time once; later calls return false.
func (s *Span) finish(attrs []attribute.KeyValue) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	for _, kv := range attrs {
		s.Attributes[string(kv.Key)] = kv.Value.Emit()
	}
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	if s.Duration < 0 {
		s.Duration = 0
	}
	s.ended = true
	return true
}

func (s *Span) String() string {
	return fmt.Sprintf("[trace:%s span:%s %s]", s.TraceID, s.SpanID, s.Name)
}

type spanKey struct{}

// ContextWithSpan returns a copy of ctx carrying span as the current span.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanKey{}, span)
}

// SpanFromContext returns the current span, or nil.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey{}).(*Span)
	return span
}

// TraceIDFromContext returns the trace ID of the current span, or the
// zero TraceID when there is none.
func TraceIDFromContext(ctx context.Context) trace.TraceID {
	if span := SpanFromContext(ctx); span != nil {
		return span.TraceID
	}
	return trace.TraceID{}
}
