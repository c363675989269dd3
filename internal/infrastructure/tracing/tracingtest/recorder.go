// Package tracingtest provides an in-memory span exporter for tests.
package tracingtest

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/tracing"
)

// Recorder keeps every exported span in memory.
type Recorder struct {
	mu       sync.Mutex
	spans    []*tracing.Span
	batches  int
	err      error
	shutdown bool
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent exports return err. Failed batches are not recorded.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) ExportSpans(_ context.Context, spans []*tracing.Span) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.batches++
	r.spans = append(r.spans, spans...)
	return nil
}

func (r *Recorder) Shutdown(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown = true
	return nil
}

// Spans returns a copy of the recorded spans in export order.
func (r *Recorder) Spans() []*tracing.Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*tracing.Span, len(r.spans))
	copy(out, r.spans)
	return out
}

// ByName returns the recorded spans called name.
func (r *Recorder) ByName(name string) []*tracing.Span {
	var out []*tracing.Span
	for _, span := range r.Spans() {
		if span.Name == name {
			out = append(out, span)
		}
	}
	return out
}

// Batches returns how many successful export calls were made.
func (r *Recorder) Batches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches
}

// IsShutdown reports whether Shutdown was called.
func (r *Recorder) IsShutdown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shutdown
}

// Reset forgets all recorded spans.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = nil
	r.batches = 0
}
