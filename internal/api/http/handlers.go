package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/telemetry-api/internal/domain/user"
	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/tracing"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	users  *user.Service
	tracer *tracing.Tracer
}

// NewHandlers creates a new handlers instance
func NewHandlers(users *user.Service, tracer *tracing.Tracer) *Handlers {
	return &Handlers{users: users, tracer: tracer}
}

// Health handles health check requests
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "healthy"})
}

// CreateUser runs the user creation use case under its own span.
func (h *Handlers) CreateUser(c *gin.Context) {
	err := h.tracer.Trace(c.Request.Context(), "CreateUserUseCase", func(ctx context.Context) error {
		return h.users.Create(ctx)
	})
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to create user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "healthy"})
}

// NotFound answers any request that matched no route.
func (h *Handlers) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
}
