package user

import (
	"context"
	"time"

	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/tracing"
)

// Delays are the simulated latencies of the user stand-in.
type Delays struct {
	Validate time.Duration
	Begin    time.Duration
	Work     time.Duration
	Commit   time.Duration
}

// DefaultDelays returns the latencies used when serving real traffic.
func DefaultDelays() Delays {
	return Delays{
		Validate: 2 * time.Millisecond,
		Begin:    3 * time.Millisecond,
		Work:     time.Millisecond,
		Commit:   4 * time.Millisecond,
	}
}

// Repository simulates a transactional user store.
type Repository struct {
	tracer *tracing.Tracer
	delays Delays
}

// NewRepository creates a repository that traces through tracer.
func NewRepository(tracer *tracing.Tracer, delays Delays) *Repository {
	return &Repository{tracer: tracer, delays: delays}
}

// Create runs begin, the write and commit, each under its own span.
func (r *Repository) Create(ctx context.Context) error {
	return r.tracer.Trace(ctx, "UserRepository::create", func(ctx context.Context) error {
		if err := r.begin(ctx); err != nil {
			return err
		}
		if err := sleep(ctx, r.delays.Work); err != nil {
			return err
		}
		return r.commit(ctx)
	})
}

func (r *Repository) begin(ctx context.Context) error {
	return r.tracer.Trace(ctx, "UserRepository::begin", func(ctx context.Context) error {
		return sleep(ctx, r.delays.Begin)
	})
}

func (r *Repository) commit(ctx context.Context) error {
	return r.tracer.Trace(ctx, "UserRepository::commit", func(ctx context.Context) error {
		return sleep(ctx, r.delays.Commit)
	})
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
