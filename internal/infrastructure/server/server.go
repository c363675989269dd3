package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	handlers "github.com/GriffinCanCode/telemetry-api/internal/api/http"
	"github.com/GriffinCanCode/telemetry-api/internal/api/middleware"
	"github.com/GriffinCanCode/telemetry-api/internal/domain/user"
	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/config"
	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/logging"
	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/tracing"
)

// Dependencies are the components the server routes requests to.
type Dependencies struct {
	Registry *monitoring.Registry
	Metrics  *monitoring.HTTPMetrics
	Tracer   *tracing.Tracer
	Users    *user.Service
}

// Server wraps the HTTP server and dependencies
type Server struct {
	router *gin.Engine
	http   *http.Server
	logger *logging.Logger
	config *config.Config
}

// New builds the router. Nothing listens until Run is called.
func New(cfg *config.Config, logger *logging.Logger, deps Dependencies) (*Server, error) {
	if deps.Registry == nil || deps.Metrics == nil || deps.Tracer == nil || deps.Users == nil {
		return nil, errors.New("server: registry, metrics, tracer and user service are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = false

	// Recovery stays outermost so the instrumentation sees a panic as a 500
	// before the response is written.
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(deps.Metrics, deps.Tracer, logger.Logger))
	router.Use(middleware.RequestLogger(logger.Logger, "/metrics"))
	if cfg.CORS.Enabled {
		router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	}
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	h := handlers.NewHandlers(deps.Users, deps.Tracer)

	router.GET("/healthz", h.Health)
	router.POST("/users", h.CreateUser)

	router.GET("/metrics", monitoring.Handler(deps.Registry))
	router.GET("/metrics/summary", monitoring.SummaryHandler(deps.Metrics, deps.Tracer))

	router.NoRoute(h.NotFound)
	router.NoMethod(h.NotFound)

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
		config: cfg,
	}, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
