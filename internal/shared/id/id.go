// Package id provides centralized ID generation for the service.
//
// Trace and span identifiers are minted from ULIDs:
//   - Trace IDs are the full 128-bit ULID, so they sort by creation time
//   - Span IDs are the 64 low (random) bits of a fresh ULID
//   - Request IDs are prefixed ULID strings for log correlation
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
)

// RequestID identifies an API request
type RequestID string

// RequestPrefix is prepended to request IDs to make them recognisable in logs.
const RequestPrefix = "req"

// Generator generates ULIDs
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source
// Useful for testing with deterministic entropy
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// TraceID creates a new, valid trace ID.
func (g *Generator) TraceID() trace.TraceID {
	for {
		tid := trace.TraceID(g.Generate())
		if tid.IsValid() {
			return tid
		}
	}
}

// SpanID creates a new, valid span ID from the random half of a ULID.
func (g *Generator) SpanID() trace.SpanID {
	for {
		u := g.Generate()
		var sid trace.SpanID
		copy(sid[:], u[8:])
		if sid.IsValid() {
			return sid
		}
	}
}

// WithPrefix creates a prefixed ULID string
func (g *Generator) WithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewTraceID generates a trace ID with the default generator
func NewTraceID() trace.TraceID {
	return Default().TraceID()
}

// NewSpanID generates a span ID with the default generator
func NewSpanID() trace.SpanID {
	return Default().SpanID()
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().WithPrefix(RequestPrefix))
}

func (id RequestID) String() string { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Timestamp extracts the creation time encoded in a trace ID.
func Timestamp(tid trace.TraceID) time.Time {
	return ulid.Time(ulid.ULID(tid).Time())
}
