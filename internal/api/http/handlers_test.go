package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/telemetry-api/internal/domain/user"
	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/telemetry-api/internal/infrastructure/tracing/tracingtest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(t *testing.T) (*gin.Engine, *tracing.Tracer, *tracingtest.Recorder) {
	t.Helper()

	spans := tracingtest.NewRecorder()
	tracer := tracing.New("api", spans, zap.NewNop(), tracing.Options{FlushInterval: time.Hour})
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	svc, err := user.NewService(user.NewRepository(tracer, user.Delays{}), tracer, monitoring.NewRegistry(), zap.NewNop(), user.Delays{})
	require.NoError(t, err)

	h := NewHandlers(svc, tracer)
	router := gin.New()
	router.GET("/healthz", h.Health)
	router.POST("/users", h.CreateUser)
	router.NoRoute(h.NotFound)
	return router, tracer, spans
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _, _ := setup(t)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"healthy"}`, w.Body.String())
}

func TestNotFound(t *testing.T) {
	router, _, _ := setup(t)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"not found"}`, w.Body.String())
}

func TestCreateUser(t *testing.T) {
	router, tracer, spans := setup(t)

	w := serve(router, httptest.NewRequest(http.MethodPost, "/users", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"healthy"}`, w.Body.String())

	require.NoError(t, tracer.Shutdown(context.Background()))

	useCase := spans.ByName("CreateUserUseCase")
	require.Len(t, useCase, 1)
	create := spans.ByName("UserService::create")
	require.Len(t, create, 1)
	assert.Equal(t, useCase[0].SpanID, create[0].ParentID)
	assert.Equal(t, useCase[0].TraceID, create[0].TraceID)
}

func TestCreateUserFailure(t *testing.T) {
	router, tracer, spans := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/users", nil).WithContext(ctx)

	w := serve(router, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	require.NoError(t, tracer.Shutdown(context.Background()))
	useCase := spans.ByName("CreateUserUseCase")
	require.Len(t, useCase, 1)
	assert.ErrorIs(t, useCase[0].Error, context.Canceled)
}
