package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/oklog/run"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/telemetry-api/internal/domain/user"
	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/config"
	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/logging"
	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/server"
	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Development = cfg.Logging.Development
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := serve(cfg, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func serve(cfg *config.Config, logger *logging.Logger) error {
	var opts []monitoring.RegistryOption
	if cfg.Metrics.RuntimeCollectors {
		opts = append(opts, monitoring.WithRuntimeCollectors())
	}
	registry := monitoring.NewRegistry(opts...)

	metrics, err := monitoring.NewHTTPMetrics(registry, cfg.Metrics.Window)
	if err != nil {
		return err
	}

	exporter, err := newExporter(cfg.Tracing, logger.Logger)
	if err != nil {
		return err
	}
	tracer := tracing.New(cfg.Tracing.ServiceName, exporter, logger.Logger, tracing.Options{
		QueueSize:      cfg.Tracing.QueueSize,
		BatchSize:      cfg.Tracing.BatchSize,
		FlushInterval:  cfg.Tracing.FlushInterval,
		EnqueueTimeout: cfg.Tracing.EnqueueTimeout,
		ExportTimeout:  cfg.Tracing.ExportTimeout,
	})

	delays := user.DefaultDelays()
	users, err := user.NewService(user.NewRepository(tracer, delays), tracer, registry, logger.Logger, delays)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, logger, server.Dependencies{
		Registry: registry,
		Metrics:  metrics,
		Tracer:   tracer,
		Users:    users,
	})
	if err != nil {
		return err
	}

	logger.Info("Starting telemetry API",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("service", cfg.Tracing.ServiceName),
		zap.Bool("remote_export", cfg.Tracing.Endpoint != ""),
	)

	var g run.Group
	g.Add(run.SignalHandler(context.Background(), syscall.SIGINT, syscall.SIGTERM))
	g.Add(srv.Run, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("HTTP server did not drain in time", zap.Error(err))
		}
	})

	err = g.Run()

	// Flush spans after the server has stopped producing them.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if serr := tracer.Shutdown(ctx); serr != nil {
		logger.Warn("Span flush incomplete", zap.Error(serr), zap.Uint64("dropped", tracer.Dropped()))
	}

	var sig run.SignalError
	if errors.As(err, &sig) {
		logger.Info("Shutdown complete", zap.Stringer("signal", sig.Signal))
		return nil
	}
	return err
}

func newExporter(cfg config.TracingConfig, logger *zap.Logger) (tracing.Exporter, error) {
	if cfg.Endpoint == "" {
		return tracing.NewLogExporter(logger), nil
	}
	exporter, err := tracing.NewHTTPExporter(tracing.HTTPExporterConfig{
		Endpoint: cfg.Endpoint,
		Service:  cfg.ServiceName,
		Compress: cfg.Compress,
		Timeout:  cfg.ExportTimeout,
		RetryMax: 2,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create span exporter: %w", err)
	}
	return exporter, nil
}
