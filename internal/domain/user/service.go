package user

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/tracing"
)

// Repository metric names.
const (
	SuccessTotal    = "user_repository_success_total"
	DurationSeconds = "user_repository_duration_seconds"
)

var createLabels = monitoring.Labels{"action": "create"}

// Service creates users.
type Service struct {
	repo     *Repository
	tracer   *tracing.Tracer
	registry *monitoring.Registry
	logger   *zap.Logger
	delays   Delays
}

// NewService registers the repository metrics on registry and returns the
// service.
func NewService(repo *Repository, tracer *tracing.Tracer, registry *monitoring.Registry, logger *zap.Logger, delays Delays) (*Service, error) {
	if err := registry.Register(SuccessTotal, monitoring.KindCounter,
		"Number of total user repository success", []string{"action"}); err != nil {
		return nil, fmt.Errorf("failed to register user metrics: %w", err)
	}
	if err := registry.Register(DurationSeconds, monitoring.KindHistogram,
		"UserRepository duration in seconds", []string{"action"}, monitoring.RequestDurationBuckets...); err != nil {
		return nil, fmt.Errorf("failed to register user metrics: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:     repo,
		tracer:   tracer,
		registry: registry,
		logger:   logger,
		delays:   delays,
	}, nil
}

// Create validates and stores a user. Metrics are only recorded when both
// steps succeed.
func (s *Service) Create(ctx context.Context) error {
	return s.tracer.Trace(ctx, "UserService::create", func(ctx context.Context) error {
		timer := monitoring.NewTimer(s.registry, DurationSeconds, createLabels)

		if err := s.validate(ctx); err != nil {
			return fmt.Errorf("validate user: %w", err)
		}
		if err := s.repo.Create(ctx); err != nil {
			return fmt.Errorf("store user: %w", err)
		}

		if err := s.registry.Increment(SuccessTotal, createLabels, 1); err != nil {
			s.logger.Warn("failed to record user metric", zap.String("metric", SuccessTotal), zap.Error(err))
		}
		if _, err := timer.Stop(); err != nil {
			s.logger.Warn("failed to record user metric", zap.String("metric", DurationSeconds), zap.Error(err))
		}
		return nil
	})
}

func (s *Service) validate(ctx context.Context) error {
	return s.tracer.Trace(ctx, "UserService::validate", func(ctx context.Context) error {
		return sleep(ctx, s.delays.Validate)
	})
}
